package entities

// Contact is who receives the voucher. It is read from the credential claims.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (c Contact) Empty() bool {
	return c.Email == "" && c.Phone == ""
}
