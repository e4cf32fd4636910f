package i18n

// Message keys used in response envelopes.
const (
	KeySystemError          = "error.system"
	KeyInvalidParameter     = "error.invalidParameter"
	KeyNotFound             = "error.notFound"
	KeyUnauthorized         = "auth.unauthorized"
	KeyTokenExpired         = "auth.tokenExpired"
	KeyEmailExists          = "auth.login.emailExist"
	KeyInvalidCredentials   = "auth.login.wrongEmailOrPassword"
	KeyOldPasswordIncorrect = "auth.login.oldPasswordIsNotCorrect"
	KeyLoggedOut            = "auth.logout.success"
	KeyPasswordChanged      = "auth.password.changed"
	KeyUserDeleted          = "users.deleted"
)

var english = map[string]string{
	KeySystemError:          "An unexpected error occurred. Please try again later.",
	KeyInvalidParameter:     "Invalid parameter.",
	KeyNotFound:             "Resource not found.",
	KeyUnauthorized:         "Unauthorized.",
	KeyTokenExpired:         "Access token has expired.",
	KeyEmailExists:          "Email already exists.",
	KeyInvalidCredentials:   "Wrong email or password.",
	KeyOldPasswordIncorrect: "Old password is not correct.",
	KeyLoggedOut:            "Logged out.",
	KeyPasswordChanged:      "Password changed.",
	KeyUserDeleted:          "User deleted.",
}

var vietnamese = map[string]string{
	KeySystemError:          "Đã xảy ra lỗi hệ thống. Vui lòng thử lại sau.",
	KeyInvalidParameter:     "Tham số không hợp lệ.",
	KeyNotFound:             "Không tìm thấy dữ liệu.",
	KeyUnauthorized:         "Chưa xác thực.",
	KeyTokenExpired:         "Access token đã hết hạn.",
	KeyEmailExists:          "Email đã tồn tại.",
	KeyInvalidCredentials:   "Sai email hoặc mật khẩu.",
	KeyOldPasswordIncorrect: "Mật khẩu cũ không đúng.",
	KeyLoggedOut:            "Đã đăng xuất.",
	KeyPasswordChanged:      "Đã đổi mật khẩu.",
	KeyUserDeleted:          "Đã xóa người dùng.",
}
