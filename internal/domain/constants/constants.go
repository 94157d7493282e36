package constants

const (
	Admin = "admin"
	User  = "user"
)
