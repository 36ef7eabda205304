package models

type Comment struct {
	Base
	TaskID   string `gorm:"size:36;index;not null" json:"task_id"`
	UserID   string `gorm:"size:36;index;not null" json:"user_id"`
	User     *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content  string `gorm:"type:text;not null" json:"content"`
	IsEdited bool   `gorm:"default:false" json:"is_edited"`
}

func (Comment) TableName() string { return "comments" }
