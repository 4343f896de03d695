package config

// EnvPrefix is the envconfig prefix for all application settings.
const EnvPrefix = "KITCHENLINE"

// Application environments.
const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv = "KITCHENLINE_APP_ENV"
	EnvPort   = "KITCHENLINE_APP_PORT"
	EnvDBDSN  = "KITCHENLINE_DB_DSN"
	EnvDBHost = "KITCHENLINE_DB_HOST"
	EnvDBUser = "KITCHENLINE_DB_USER"
	EnvDBName = "KITCHENLINE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
