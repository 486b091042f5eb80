package config

const (
	EnvPrefix = "grupofy"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "GRUPOFY_DB_DSN"
	EnvDBHost = "GRUPOFY_DB_HOST"
	EnvDBUser = "GRUPOFY_DB_USER"
	EnvDBName = "GRUPOFY_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
