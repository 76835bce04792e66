package server

func (s *Server) initRoutes() {
	// HOME
	s.RegisterRouteHandler("GET "+RouteHome, ChainMiddleware(s.HomePageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginRedirectHandler(s.home), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteReset, ChainMiddleware(s.ResetHandler(s.home, s.homeBuilder, "/"), s.HTMLMiddleWare()...))

	// BULK
	s.RegisterRouteHandler("GET "+RouteBulk, ChainMiddleware(s.BulkPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteBulkLogin, ChainMiddleware(s.LoginRedirectHandler(s.bulk), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteBulkExport, ChainMiddleware(s.BulkExportHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteBulkReset, ChainMiddleware(s.ResetHandler(s.bulk, s.bulkBuilder, RouteBulk), s.HTMLMiddleWare()...))

	// API routes
	s.RegisterRouteHandler("GET "+RouteBulkStatus, ChainMiddleware(s.BulkStatusHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("OPTIONS "+RouteBulkStatus, ChainMiddleware(s.BulkStatusHandler(), s.APIMiddleware()...))
}
