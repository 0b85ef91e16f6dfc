package lecturer

import "time"

// Lecturer は請求を提出する講師です。ワークフローからは参照のみ行います。
type Lecturer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
