package claim

// CanAccess は呼び出し元が請求を閲覧できるかどうかを判定します。
// 講師は自分の請求のみ、コーディネーターとマネージャーはすべての請求を閲覧できます。
func CanAccess(c *Claim, role Role, actorLecturerID string) bool {
	if c == nil {
		return false
	}
	switch role {
	case RoleLecturer:
		return actorLecturerID != "" && c.LecturerID == actorLecturerID
	case RoleCoordinator, RoleManager:
		return true
	default:
		return false
	}
}
