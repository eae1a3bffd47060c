package handler

// SetPasswordCheck replaces the bcrypt comparison used by Login.
func SetPasswordCheck(h *Handler, check func(hash, pw string) bool) {
	h.checkPassword = check
}
