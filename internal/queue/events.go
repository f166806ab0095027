package queue

// Routing keys on the auth events exchange.
const (
	KeyUserRegistered = "user.registered"
	KeyUserLoggedIn   = "user.loggedin"
)

type UserRegistered struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type UserLoggedIn struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Method string `json:"method"` // "password" | "google"
}
