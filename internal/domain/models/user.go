package models

type User struct {
	Id       string `db:"id"`
	Email    string `db:"email"`
	UserType string `db:"user_type"`
	PassHash []byte `db:"password_hash"`
}
