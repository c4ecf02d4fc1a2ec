package domain

// Identity is the user identity and bearer credential used to open the
// channel. It is read fresh on every connect.
type Identity struct {
	UserID string
	Token  string
}

// Valid reports whether both fields are set.
func (i Identity) Valid() bool {
	return i.UserID != "" && i.Token != ""
}
