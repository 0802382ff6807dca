package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware context keys)
	FieldUserID = "user_id"

	// Realtime
	FieldConnID  = "conn_id"
	FieldChatID  = "chat_id"
	FieldEvent   = "event"
	FieldTargets = "targets"

	// Service
	FieldService = "service"

	// gRPC
	FieldGRPCMethod = "grpc_method"
	FieldGRPCCode   = "grpc_code"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
