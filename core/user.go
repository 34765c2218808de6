package core

// UserKey identifies the owner of dashboards and of a session.
type UserKey string
