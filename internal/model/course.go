package model

import "github.com/shopspring/decimal"

type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Course struct {
	ID            int64           `json:"course_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Rating        float64         `json:"rating"`
	ReviewsCount  int             `json:"reviews_count"`
	StudentsCount int             `json:"students_count"`
	LessonCount   int             `json:"lesson_count"`
	Level         string          `json:"level"`
	Duration      string          `json:"duration"`
	WhatYouLearn  []string        `json:"what_you_learn"`
	FAQs          []FAQ           `json:"faqs"`
}

// Lesson accessibility is decided by the backend per viewer and is never
// recomputed here.
type Lesson struct {
	ID           int64  `json:"lesson_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Duration     string `json:"duration"`
	VideoURL     string `json:"video_url"`
	IsAccessible bool   `json:"is_accessible"`
}
