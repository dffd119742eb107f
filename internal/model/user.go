package model

// Token is one issued session token of a user.
type Token struct {
	Access string `json:"-"`
	Token  string `json:"-"`
}

// User is the stored account. Only ID and Email are ever serialized to JSON,
// PasswordHash and Tokens are redacted at every boundary.
type User struct {
	ID           string  `json:"_id"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"`
	Tokens       []Token `json:"-"`
	Ctime        int64   `json:"-"`
	Mtime        int64   `json:"-"`
}

// HasToken reports whether the token list holds token with the given access tag.
func (u *User) HasToken(access, token string) bool {
	if u == nil {
		return false
	}
	for _, t := range u.Tokens {
		if t.Access == access && t.Token == token {
			return true
		}
	}
	return false
}

// UserPatch is a field-level update of a user. Nil fields are left unchanged.
type UserPatch struct {
	Email        *string
	PasswordHash *string
	Mtime        int64
}
