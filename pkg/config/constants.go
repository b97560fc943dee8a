package config

// EnvPrefix is the envconfig prefix applied when parsing the environment.
// Every variable also carries the explicit FRESHFOLD_ name in its tag, so
// the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv  = "FRESHFOLD_APP_ENV"
	EnvAppPort = "FRESHFOLD_APP_PORT"

	EnvDBDSN  = "FRESHFOLD_DB_DSN"
	EnvDBHost = "FRESHFOLD_DB_HOST"
	EnvDBUser = "FRESHFOLD_DB_USER"
	EnvDBName = "FRESHFOLD_DB_NAME"
)

var requiredDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
