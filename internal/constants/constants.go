package constants

const (
	// IDRandomBytes is the amount of entropy behind every generated row id.
	IDRandomBytes = 12

	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"

	// Multipart field names accepted by the upload routes.
	FieldAvatar     = "avatar"
	FieldCoverImage = "coverImage"
)
