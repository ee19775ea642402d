package http

// LockCount returns the number of live per-session locks.
func LockCount(s *Server) int {
	return s.locks.len()
}
