package config

const (
	// EnvPrefix namespaces every environment variable the services read.
	EnvPrefix = "THREADLINE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Service names, used for logging and as defaults for queue naming.
const (
	ServiceAuth    = "auth-service"
	ServiceUser    = "user-service"
	ServiceProduct = "product-service"
	ServiceGateway = "gateway"
)
