package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ENV_PREFIX = "MESSAGING_CONNECTOR"

	URL_BASE_PATH                  = "URL_Base_Path"
	HTTP_SHUTDOWN_TIMEOUT          = "HTTP_Shutdown_Timeout"
	SERVICE_TO_SERVICE_CREDENTIALS = "Service_To_Service_Credentials"
	PROFILE                        = "Enable_Profile"
	LIVE_UPDATES_ALLOWED_ORIGINS   = "Live_Updates_Allowed_Origins"

	BACKEND_URL     = "Backend_Url"
	BACKEND_TIMEOUT = "Backend_Timeout"

	CREDENTIAL_STORE_IMPL      = "Credential_Store_Impl"
	CREDENTIAL_STORE_DIRECTORY = "Credential_Store_Directory"

	CONNECTION_DATABASE_HOST          = "Connection_Database_Host"
	CONNECTION_DATABASE_PORT          = "Connection_Database_Port"
	CONNECTION_DATABASE_USER          = "Connection_Database_User"
	CONNECTION_DATABASE_PASSWORD      = "Connection_Database_Password"
	CONNECTION_DATABASE_NAME          = "Connection_Database_Name"
	CONNECTION_DATABASE_SSL_MODE      = "Connection_Database_Ssl_Mode"
	CONNECTION_DATABASE_SSL_ROOT_CERT = "Connection_Database_Ssl_Root_Cert"

	JOB_QUEUE_IMPL         = "Job_Queue_Impl"
	MEMORY_JOB_QUEUE_SIZE  = "Memory_Job_Queue_Size"
	BROKERS                = "Kafka_Brokers"
	JOBS_TOPIC             = "Kafka_Jobs_Topic"
	JOBS_GROUP_ID          = "Kafka_Jobs_Group_Id"
	JOBS_BATCH_SIZE        = "Kafka_Jobs_Batch_Size"
	JOBS_BATCH_BYTES       = "Kafka_Jobs_Batch_Bytes"
	KAFKA_USERNAME         = "Kafka_Username"
	KAFKA_PASSWORD         = "Kafka_Password"
	KAFKA_SASL_MECHANISM   = "Kafka_SASL_Mechanism"
	KAFKA_CA               = "Kafka_CA"
	DEFAULT_BROKER_ADDRESS = "kafka:29092"

	DISPATCHER_WORKERS         = "Dispatcher_Workers"
	DISPATCHER_MAX_ATTEMPTS    = "Dispatcher_Max_Attempts"
	DISPATCHER_BACKOFF_BASE_MS = "Dispatcher_Backoff_Base_Ms"

	RECONNECT_DELAY          = "Reconnect_Delay"
	GROUP_METADATA_CACHE_TTL = "Group_Metadata_Cache_TTL"

	MQTT_BROKER_ADDRESS              = "MQTT_Broker_Address"
	MQTT_TOPIC_PREFIX                = "MQTT_Topic_Prefix"
	MQTT_CLIENT_ID_PREFIX            = "MQTT_Client_Id_Prefix"
	MQTT_BROKER_TLS_CERT_FILE        = "MQTT_Broker_Tls_Cert_File"
	MQTT_BROKER_TLS_KEY_FILE         = "MQTT_Broker_Tls_Key_File"
	MQTT_BROKER_TLS_CA_CERT_FILE     = "MQTT_Broker_Tls_CA_Cert_File"
	MQTT_BROKER_TLS_SKIP_VERIFY      = "MQTT_Broker_Tls_Skip_Verify"
	MQTT_BROKER_JWT_GENERATOR_IMPL   = "MQTT_Broker_JWT_Generator_Impl"
	MQTT_BROKER_JWT_FILE             = "MQTT_Broker_JWT_File"
	JWT_PRIVATE_KEY_FILE             = "JWT_Private_Key_File"
	JWT_TOKEN_EXPIRY                 = "JWT_Token_Expiry_Minutes"
	MQTT_PUBLISH_QOS                 = "MQTT_Publish_QoS"
	MQTT_REQUEST_TIMEOUT             = "MQTT_Request_Timeout"
	MQTT_DISCONNECT_QUIESCE_TIME     = "MQTT_Disconnect_Quiesce_Time"
	MQTT_CONNECTION_ESTABLISH_TIMOUT = "MQTT_Connection_Establish_Timeout"
)

type Config struct {
	UrlBasePath                 string
	HttpShutdownTimeout         time.Duration
	ServiceToServiceCredentials map[string]interface{}
	Profile                     bool
	LiveUpdatesAllowedOrigins   []string

	BackendUrl     string
	BackendTimeout time.Duration

	CredentialStoreImpl      string
	CredentialStoreDirectory string

	ConnectionDatabaseHost        string
	ConnectionDatabasePort        int
	ConnectionDatabaseUser        string
	ConnectionDatabasePassword    string
	ConnectionDatabaseName        string
	ConnectionDatabaseSslMode     string
	ConnectionDatabaseSslRootCert string

	JobQueueImpl          string
	MemoryJobQueueSize    int
	KafkaBrokers          []string
	KafkaJobsTopic        string
	KafkaJobsGroupID      string
	KafkaJobsBatchSize    int
	KafkaJobsBatchBytes   int
	KafkaUsername         string
	KafkaPassword         string
	KafkaSASLMechanism    string
	KafkaCA               string
	DispatcherWorkers     int
	DispatcherMaxAttempts int
	DispatcherBackoffBase time.Duration

	ReconnectDelay        time.Duration
	GroupMetadataCacheTTL time.Duration

	MqttBrokerAddress              string
	MqttTopicPrefix                string
	MqttClientIdPrefix             string
	MqttBrokerTlsCertFile          string
	MqttBrokerTlsKeyFile           string
	MqttBrokerTlsCACertFile        string
	MqttBrokerTlsSkipVerify        bool
	MqttBrokerJwtGeneratorImpl     string
	MqttBrokerJwtFile              string
	JwtPrivateKeyFile              string
	JwtTokenExpiry                 int
	MqttPublishQoS                 byte
	MqttRequestTimeout             time.Duration
	MqttDisconnectQuiesceTime      uint
	MqttConnectionEstablishTimeout time.Duration
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", URL_BASE_PATH, c.UrlBasePath)
	fmt.Fprintf(&b, "%s: %s\n", HTTP_SHUTDOWN_TIMEOUT, c.HttpShutdownTimeout)
	fmt.Fprintf(&b, "%s: %t\n", PROFILE, c.Profile)
	fmt.Fprintf(&b, "%s: %s\n", LIVE_UPDATES_ALLOWED_ORIGINS, c.LiveUpdatesAllowedOrigins)
	fmt.Fprintf(&b, "%s: %s\n", BACKEND_URL, c.BackendUrl)
	fmt.Fprintf(&b, "%s: %s\n", BACKEND_TIMEOUT, c.BackendTimeout)
	fmt.Fprintf(&b, "%s: %s\n", CREDENTIAL_STORE_IMPL, c.CredentialStoreImpl)
	fmt.Fprintf(&b, "%s: %s\n", CREDENTIAL_STORE_DIRECTORY, c.CredentialStoreDirectory)
	fmt.Fprintf(&b, "%s: %s\n", CONNECTION_DATABASE_HOST, c.ConnectionDatabaseHost)
	fmt.Fprintf(&b, "%s: %d\n", CONNECTION_DATABASE_PORT, c.ConnectionDatabasePort)
	fmt.Fprintf(&b, "%s: %s\n", CONNECTION_DATABASE_USER, c.ConnectionDatabaseUser)
	fmt.Fprintf(&b, "%s: %s\n", CONNECTION_DATABASE_NAME, c.ConnectionDatabaseName)
	fmt.Fprintf(&b, "%s: %s\n", CONNECTION_DATABASE_SSL_MODE, c.ConnectionDatabaseSslMode)
	fmt.Fprintf(&b, "%s: %s\n", JOB_QUEUE_IMPL, c.JobQueueImpl)
	fmt.Fprintf(&b, "%s: %d\n", MEMORY_JOB_QUEUE_SIZE, c.MemoryJobQueueSize)
	fmt.Fprintf(&b, "%s: %s\n", BROKERS, c.KafkaBrokers)
	fmt.Fprintf(&b, "%s: %s\n", JOBS_TOPIC, c.KafkaJobsTopic)
	fmt.Fprintf(&b, "%s: %s\n", JOBS_GROUP_ID, c.KafkaJobsGroupID)
	fmt.Fprintf(&b, "%s: %d\n", JOBS_BATCH_SIZE, c.KafkaJobsBatchSize)
	fmt.Fprintf(&b, "%s: %d\n", JOBS_BATCH_BYTES, c.KafkaJobsBatchBytes)
	fmt.Fprintf(&b, "%s: %s\n", KAFKA_SASL_MECHANISM, c.KafkaSASLMechanism)
	fmt.Fprintf(&b, "%s: %d\n", DISPATCHER_WORKERS, c.DispatcherWorkers)
	fmt.Fprintf(&b, "%s: %d\n", DISPATCHER_MAX_ATTEMPTS, c.DispatcherMaxAttempts)
	fmt.Fprintf(&b, "%s: %s\n", DISPATCHER_BACKOFF_BASE_MS, c.DispatcherBackoffBase)
	fmt.Fprintf(&b, "%s: %s\n", RECONNECT_DELAY, c.ReconnectDelay)
	fmt.Fprintf(&b, "%s: %s\n", GROUP_METADATA_CACHE_TTL, c.GroupMetadataCacheTTL)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_ADDRESS, c.MqttBrokerAddress)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_TOPIC_PREFIX, c.MqttTopicPrefix)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_CLIENT_ID_PREFIX, c.MqttClientIdPrefix)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_TLS_CERT_FILE, c.MqttBrokerTlsCertFile)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_TLS_KEY_FILE, c.MqttBrokerTlsKeyFile)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_TLS_CA_CERT_FILE, c.MqttBrokerTlsCACertFile)
	fmt.Fprintf(&b, "%s: %t\n", MQTT_BROKER_TLS_SKIP_VERIFY, c.MqttBrokerTlsSkipVerify)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_JWT_GENERATOR_IMPL, c.MqttBrokerJwtGeneratorImpl)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_BROKER_JWT_FILE, c.MqttBrokerJwtFile)
	fmt.Fprintf(&b, "%s: %s\n", JWT_PRIVATE_KEY_FILE, c.JwtPrivateKeyFile)
	fmt.Fprintf(&b, "%s: %d\n", JWT_TOKEN_EXPIRY, c.JwtTokenExpiry)
	fmt.Fprintf(&b, "%s: %d\n", MQTT_PUBLISH_QOS, c.MqttPublishQoS)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_REQUEST_TIMEOUT, c.MqttRequestTimeout)
	fmt.Fprintf(&b, "%s: %d\n", MQTT_DISCONNECT_QUIESCE_TIME, c.MqttDisconnectQuiesceTime)
	fmt.Fprintf(&b, "%s: %s\n", MQTT_CONNECTION_ESTABLISH_TIMOUT, c.MqttConnectionEstablishTimeout)

	return b.String()
}

func GetConfig() *Config {
	options := viper.New()

	options.SetDefault(URL_BASE_PATH, "/api")
	options.SetDefault(HTTP_SHUTDOWN_TIMEOUT, 2)
	options.SetDefault(SERVICE_TO_SERVICE_CREDENTIALS, "")
	options.SetDefault(PROFILE, false)
	options.SetDefault(LIVE_UPDATES_ALLOWED_ORIGINS, []string{"*"})

	options.SetDefault(BACKEND_URL, "http://localhost:8000")
	options.SetDefault(BACKEND_TIMEOUT, 10)

	options.SetDefault(CREDENTIAL_STORE_IMPL, "file")
	options.SetDefault(CREDENTIAL_STORE_DIRECTORY, "./auth_info")

	options.SetDefault(CONNECTION_DATABASE_HOST, "localhost")
	options.SetDefault(CONNECTION_DATABASE_PORT, 5432)
	options.SetDefault(CONNECTION_DATABASE_USER, "insights")
	options.SetDefault(CONNECTION_DATABASE_PASSWORD, "insights")
	options.SetDefault(CONNECTION_DATABASE_NAME, "messaging-connector")
	options.SetDefault(CONNECTION_DATABASE_SSL_MODE, "disable")
	options.SetDefault(CONNECTION_DATABASE_SSL_ROOT_CERT, "db_ssl_root_cert.pem")

	options.SetDefault(JOB_QUEUE_IMPL, "kafka")
	options.SetDefault(MEMORY_JOB_QUEUE_SIZE, 1000)
	options.SetDefault(BROKERS, []string{DEFAULT_BROKER_ADDRESS})
	options.SetDefault(JOBS_TOPIC, "platform.messaging-connector.outbound-messages")
	options.SetDefault(JOBS_GROUP_ID, "messaging-connector-dispatcher")
	options.SetDefault(JOBS_BATCH_SIZE, 1)
	options.SetDefault(JOBS_BATCH_BYTES, 1048576)
	options.SetDefault(KAFKA_SASL_MECHANISM, "plain")

	options.SetDefault(DISPATCHER_WORKERS, 1)
	options.SetDefault(DISPATCHER_MAX_ATTEMPTS, 3)
	options.SetDefault(DISPATCHER_BACKOFF_BASE_MS, 2000)

	options.SetDefault(RECONNECT_DELAY, 5)
	options.SetDefault(GROUP_METADATA_CACHE_TTL, 300)

	options.SetDefault(MQTT_BROKER_ADDRESS, "tcp://localhost:1883")
	options.SetDefault(MQTT_TOPIC_PREFIX, "messaging-gateway")
	options.SetDefault(MQTT_CLIENT_ID_PREFIX, "messaging-connector-")
	options.SetDefault(MQTT_BROKER_TLS_SKIP_VERIFY, false)
	options.SetDefault(MQTT_BROKER_JWT_GENERATOR_IMPL, "")
	options.SetDefault(JWT_TOKEN_EXPIRY, 60)
	options.SetDefault(MQTT_PUBLISH_QOS, 1)
	options.SetDefault(MQTT_REQUEST_TIMEOUT, 30)
	options.SetDefault(MQTT_DISCONNECT_QUIESCE_TIME, 1000)
	options.SetDefault(MQTT_CONNECTION_ESTABLISH_TIMOUT, 10)

	options.SetEnvPrefix(ENV_PREFIX)
	options.AutomaticEnv()

	return &Config{
		UrlBasePath:                 options.GetString(URL_BASE_PATH),
		HttpShutdownTimeout:         options.GetDuration(HTTP_SHUTDOWN_TIMEOUT) * time.Second,
		ServiceToServiceCredentials: options.GetStringMap(SERVICE_TO_SERVICE_CREDENTIALS),
		Profile:                     options.GetBool(PROFILE),
		LiveUpdatesAllowedOrigins:   options.GetStringSlice(LIVE_UPDATES_ALLOWED_ORIGINS),

		BackendUrl:     strings.TrimSuffix(options.GetString(BACKEND_URL), "/"),
		BackendTimeout: options.GetDuration(BACKEND_TIMEOUT) * time.Second,

		CredentialStoreImpl:      options.GetString(CREDENTIAL_STORE_IMPL),
		CredentialStoreDirectory: options.GetString(CREDENTIAL_STORE_DIRECTORY),

		ConnectionDatabaseHost:        options.GetString(CONNECTION_DATABASE_HOST),
		ConnectionDatabasePort:        options.GetInt(CONNECTION_DATABASE_PORT),
		ConnectionDatabaseUser:        options.GetString(CONNECTION_DATABASE_USER),
		ConnectionDatabasePassword:    options.GetString(CONNECTION_DATABASE_PASSWORD),
		ConnectionDatabaseName:        options.GetString(CONNECTION_DATABASE_NAME),
		ConnectionDatabaseSslMode:     options.GetString(CONNECTION_DATABASE_SSL_MODE),
		ConnectionDatabaseSslRootCert: options.GetString(CONNECTION_DATABASE_SSL_ROOT_CERT),

		JobQueueImpl:          options.GetString(JOB_QUEUE_IMPL),
		MemoryJobQueueSize:    options.GetInt(MEMORY_JOB_QUEUE_SIZE),
		KafkaBrokers:          options.GetStringSlice(BROKERS),
		KafkaJobsTopic:        options.GetString(JOBS_TOPIC),
		KafkaJobsGroupID:      options.GetString(JOBS_GROUP_ID),
		KafkaJobsBatchSize:    options.GetInt(JOBS_BATCH_SIZE),
		KafkaJobsBatchBytes:   options.GetInt(JOBS_BATCH_BYTES),
		KafkaUsername:         options.GetString(KAFKA_USERNAME),
		KafkaPassword:         options.GetString(KAFKA_PASSWORD),
		KafkaSASLMechanism:    options.GetString(KAFKA_SASL_MECHANISM),
		KafkaCA:               options.GetString(KAFKA_CA),
		DispatcherWorkers:     options.GetInt(DISPATCHER_WORKERS),
		DispatcherMaxAttempts: options.GetInt(DISPATCHER_MAX_ATTEMPTS),
		DispatcherBackoffBase: options.GetDuration(DISPATCHER_BACKOFF_BASE_MS) * time.Millisecond,

		ReconnectDelay:        options.GetDuration(RECONNECT_DELAY) * time.Second,
		GroupMetadataCacheTTL: options.GetDuration(GROUP_METADATA_CACHE_TTL) * time.Second,

		MqttBrokerAddress:              options.GetString(MQTT_BROKER_ADDRESS),
		MqttTopicPrefix:                options.GetString(MQTT_TOPIC_PREFIX),
		MqttClientIdPrefix:             options.GetString(MQTT_CLIENT_ID_PREFIX),
		MqttBrokerTlsCertFile:          options.GetString(MQTT_BROKER_TLS_CERT_FILE),
		MqttBrokerTlsKeyFile:           options.GetString(MQTT_BROKER_TLS_KEY_FILE),
		MqttBrokerTlsCACertFile:        options.GetString(MQTT_BROKER_TLS_CA_CERT_FILE),
		MqttBrokerTlsSkipVerify:        options.GetBool(MQTT_BROKER_TLS_SKIP_VERIFY),
		MqttBrokerJwtGeneratorImpl:     options.GetString(MQTT_BROKER_JWT_GENERATOR_IMPL),
		MqttBrokerJwtFile:              options.GetString(MQTT_BROKER_JWT_FILE),
		JwtPrivateKeyFile:              options.GetString(JWT_PRIVATE_KEY_FILE),
		JwtTokenExpiry:                 options.GetInt(JWT_TOKEN_EXPIRY),
		MqttPublishQoS:                 byte(options.GetInt(MQTT_PUBLISH_QOS)),
		MqttRequestTimeout:             options.GetDuration(MQTT_REQUEST_TIMEOUT) * time.Second,
		MqttDisconnectQuiesceTime:      options.GetUint(MQTT_DISCONNECT_QUIESCE_TIME),
		MqttConnectionEstablishTimeout: options.GetDuration(MQTT_CONNECTION_ESTABLISH_TIMOUT) * time.Second,
	}
}
