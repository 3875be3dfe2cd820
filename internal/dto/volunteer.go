package dto

// ── 志工模块 DTO ──

// CreateVolunteerRequest 创建志工请求
type CreateVolunteerRequest struct {
	Name             string `json:"name"              binding:"required,min=1,max=100"`
	Phone            string `json:"phone"             binding:"required,tw_mobile"`
	Email            string `json:"email"             binding:"required,email,max=255"`
	Department       string `json:"department"        binding:"omitempty,max=100"`
	Skills           string `json:"skills"            binding:"omitempty,max=1000"`
	ExperienceYears  int    `json:"experience_years"  binding:"min=0,max=80"`
	EmergencyContact string `json:"emergency_contact" binding:"omitempty,max=100"`
	EmergencyPhone   string `json:"emergency_phone"   binding:"omitempty,max=20"`
	Address          string `json:"address"           binding:"omitempty,max=255"`
	BirthDate        string `json:"birth_date"        binding:"omitempty,datetime=2006-01-02"`
	Status           string `json:"status"            binding:"omitempty,oneof=active inactive pending"`
	Notes            string `json:"notes"             binding:"omitempty,max=2000"`
}

// UpdateVolunteerRequest 更新志工请求，仅更新非 nil 字段
type UpdateVolunteerRequest struct {
	Name             *string `json:"name"              binding:"omitempty,min=1,max=100"`
	Phone            *string `json:"phone"             binding:"omitempty,tw_mobile"`
	Email            *string `json:"email"             binding:"omitempty,email,max=255"`
	Department       *string `json:"department"        binding:"omitempty,max=100"`
	Skills           *string `json:"skills"            binding:"omitempty,max=1000"`
	ExperienceYears  *int    `json:"experience_years"  binding:"omitempty,min=0,max=80"`
	EmergencyContact *string `json:"emergency_contact" binding:"omitempty,max=100"`
	EmergencyPhone   *string `json:"emergency_phone"   binding:"omitempty,max=20"`
	Address          *string `json:"address"           binding:"omitempty,max=255"`
	BirthDate        *string `json:"birth_date"        binding:"omitempty,datetime=2006-01-02"`
	Status           *string `json:"status"            binding:"omitempty,oneof=active inactive pending"`
	Notes            *string `json:"notes"             binding:"omitempty,max=2000"`
}

// VolunteerListRequest 志工列表查询参数
type VolunteerListRequest struct {
	PaginationRequest
	VolunteerFilterRequest
}

// VolunteerFilterRequest 志工筛选条件（列表与报表共用）
type VolunteerFilterRequest struct {
	Department string `form:"department" binding:"omitempty,max=100"`
	Status     string `form:"status"     binding:"omitempty,oneof=active inactive pending"`
	Skill      string `form:"skill"      binding:"omitempty,max=50"`
	Search     string `form:"search"     binding:"omitempty,max=100"`
}

// VolunteerResponse 志工信息响应
type VolunteerResponse struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Email            string `json:"email"`
	Department       string `json:"department"`
	Skills           string `json:"skills"`
	ExperienceYears  int    `json:"experience_years"`
	EmergencyContact string `json:"emergency_contact"`
	EmergencyPhone   string `json:"emergency_phone"`
	Address          string `json:"address"`
	BirthDate        string `json:"birth_date"`
	Status           string `json:"status"`
	Notes            string `json:"notes"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// VolunteerStatsResponse 志工统计
type VolunteerStatsResponse struct {
	Total        int64        `json:"total"`
	Active       int64        `json:"active"`
	Inactive     int64        `json:"inactive"`
	Pending      int64        `json:"pending"`
	ByDepartment []LabelCount `json:"byDepartment"`
	BySkill      []LabelCount `json:"bySkill"`
	ByExperience []LabelCount `json:"byExperience"`
}

// ImportVolunteerResponse 批量导入志工响应
type ImportVolunteerResponse struct {
	Total    int                    `json:"total"`
	Imported int                    `json:"imported"`
	Failed   int                    `json:"failed"`
	Errors   []ImportVolunteerError `json:"errors,omitempty"`
}

// ImportVolunteerError 导入错误详情（Row 从 1 开始，不含表头）
type ImportVolunteerError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}
