package validators

// bcrypt ignores input past 72 bytes.
const maxPasswordBytes = 72

// Auth payloads.
var (
	Register = NewSchema().
			Field("email", Required(), Email()).
			Field("password", Required(), MinLen(8), MaxBytes(maxPasswordBytes)).
			Field("birthday", Date()).
			Field("phone", MinLen(10), MaxLen(11))

	Login = NewSchema().
		Field("email", Required()).
		Field("password", Required(), MaxBytes(maxPasswordBytes))

	Refresh = NewSchema().
		Field("refreshToken", Required())

	ProfileUpdate = NewSchema().
			Field("birthday", Date()).
			Field("phone", MinLen(10), MaxLen(11))

	ChangePassword = NewSchema().
			Field("oldPassword", Required(), MaxBytes(maxPasswordBytes)).
			Field("newPassword", Required(), MinLen(8), MaxBytes(maxPasswordBytes))
)

// Admin user payloads.
var (
	UserCreate = NewSchema().
			Field("email", Required(), Email()).
			Field("password", Required(), MinLen(8), MaxBytes(maxPasswordBytes)).
			Field("fullName", Required()).
			Field("birthday", Date()).
			Field("phone", MinLen(10), MaxLen(11))

	UserUpdate = NewSchema().
			Field("email", Required(), Email()).
			Field("password", MinLen(8), MaxBytes(maxPasswordBytes)).
			Field("fullName", Required()).
			Field("birthday", Date()).
			Field("phone", MinLen(10), MaxLen(11))

	UserPassword = NewSchema().
			Field("password", Required(), MinLen(6), MaxLen(20))

	UserList = NewSchema().
			Field("page", Integer()).
			Field("limit", Integer())
)
