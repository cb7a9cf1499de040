package user

import "errors"

var ErrUserNotFound = errors.New("user not found")

// User is the resolved identity handed to us by the authentication
// collaborator. The fulfillment core only validates existence and checks
// ownership/admin rights; credential handling lives outside this service.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}
