package models

import "time"

// RequestStat counts successful requests per day and route. The counters
// feed the teacher dashboard's activity charts.
type RequestStat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:uniq_date_route" json:"date"`
	Route     string    `gorm:"size:255;not null;uniqueIndex:uniq_date_route" json:"route"`
	Count     int64     `gorm:"not null;default:0" json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
}
