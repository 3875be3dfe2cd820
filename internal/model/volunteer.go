package model

// 志工状态
const (
	VolunteerStatusActive   = "active"
	VolunteerStatusInactive = "inactive"
	VolunteerStatusPending  = "pending"
)

// Volunteer 志工表，对应 volunteers
type Volunteer struct {
	BaseModel
	Name             string `gorm:"type:varchar(100);not null"                 json:"name"`
	Phone            string `gorm:"type:varchar(20);not null"                  json:"phone"`
	Email            string `gorm:"type:varchar(255);uniqueIndex"              json:"email"`
	Department       string `gorm:"type:varchar(100);index"                    json:"department"`
	Skills           string `gorm:"type:text"                                  json:"skills"` // 逗号分隔
	ExperienceYears  int    `gorm:"not null;default:0"                         json:"experience_years"`
	EmergencyContact string `gorm:"type:varchar(100)"                          json:"emergency_contact"`
	EmergencyPhone   string `gorm:"type:varchar(20)"                           json:"emergency_phone"`
	Address          string `gorm:"type:varchar(255)"                          json:"address"`
	BirthDate        string `gorm:"type:varchar(10)"                           json:"birth_date"` // YYYY-MM-DD
	Status           string `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Notes            string `gorm:"type:text"                                  json:"notes"`
}

// TableName 指定表名
func (Volunteer) TableName() string { return "volunteers" }
