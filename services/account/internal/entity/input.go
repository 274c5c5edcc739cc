package entity

// Upload is a file already written to local disk by the transport layer.
type Upload struct {
	LocalPath   string
	Filename    string
	ContentType string
}

type RegisterInput struct {
	FullName   string
	Email      string
	Username   string
	Password   string
	Avatar     *Upload
	CoverImage *Upload
}

type LoginInput struct {
	Username string
	Email    string
	Password string
}
