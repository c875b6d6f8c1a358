// Package config loads bt-http-utils configuration from a YAML file, an
// optional .env file and the process environment.
//
// Viper reads the YAML file; godotenv loads the .env file into the process
// environment; every mapstructure key of the target struct is then bound to
// an environment variable with the BT_ prefix, dots replaced by
// underscores:
//
//	client.use_cookies  ->  BT_CLIENT_USE_COOKIES
//	client.trust.cert_dir -> BT_CLIENT_TRUST_CERT_DIR
//
// # Usage
//
//	var s Settings
//	err := config.LoadConfig("bthttp", &s, config.WithConfigFile(path))
package config
