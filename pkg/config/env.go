package config

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "STOCKHOLD_APP_ENV"
	EnvPort     = "STOCKHOLD_APP_PORT"
	EnvLogLevel = "STOCKHOLD_LOG_LEVEL"

	EnvDBDSN  = "STOCKHOLD_DB_DSN"
	EnvDBHost = "STOCKHOLD_DB_HOST"
	EnvDBUser = "STOCKHOLD_DB_USER"
	EnvDBName = "STOCKHOLD_DB_NAME"

	EnvRedisURL = "STOCKHOLD_REDIS_URL"

	EnvJWTSecret = "STOCKHOLD_JWT_SECRET"
	EnvJWTIssuer = "STOCKHOLD_JWT_ISSUER"

	EnvReservationDefaultWarehouse = "STOCKHOLD_RESERVATION_DEFAULT_WAREHOUSE_ID"
	EnvReservationDefaultDuration  = "STOCKHOLD_RESERVATION_DEFAULT_DURATION_MINUTES"
	EnvReservationMaxDuration      = "STOCKHOLD_RESERVATION_MAX_DURATION_MINUTES"

	EnvLedgerMaxAttempts = "STOCKHOLD_LEDGER_MAX_ATTEMPTS"

	EnvSweeperInterval = "STOCKHOLD_SWEEPER_INTERVAL"

	EnvERPEnabled   = "STOCKHOLD_ERP_ENABLED"
	EnvERPBaseURL   = "STOCKHOLD_ERP_BASE_URL"
	EnvERPAPIToken  = "STOCKHOLD_ERP_API_TOKEN"
	EnvERPMandatory = "STOCKHOLD_ERP_MANDATORY"

	EnvGCPProjectID = "STOCKHOLD_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
