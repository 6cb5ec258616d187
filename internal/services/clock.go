package services

import (
	"time"
)

// Clock 时间来源, 测试中注入固定时间
type Clock interface {
	Now() time.Time
}

// SystemClock 使用系统时间
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc 把函数适配为 Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// PickupWindow 判断某一时刻是否允许提货
type PickupWindow func(time.Time) bool

// AnyDay 任意时间都可提货
func AnyDay(time.Time) bool { return true }

// WeekendOnly 仅周六周日可提货
func WeekendOnly(t time.Time) bool {
	d := t.Weekday()
	return d == time.Saturday || d == time.Sunday
}
