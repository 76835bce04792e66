package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Home flow: patient login and Patient read
	RouteHome  = "/{$}"
	RouteLogin = "/login"
	RouteReset = "/reset"

	// Bulk flow: backend login and $export
	RouteBulk       = "/bulk"
	RouteBulkLogin  = "/bulk/login"
	RouteBulkExport = "/bulk/export"
	RouteBulkStatus = "/bulk/status"
	RouteBulkReset  = "/bulk/reset"
)
