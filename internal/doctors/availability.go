package doctors

// ValidClockTime reports whether value is a zero-padded 24-hour HH:MM string.
func ValidClockTime(value string) bool {
	if len(value) != 5 || value[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	hour := int(value[0]-'0')*10 + int(value[1]-'0')
	minute := int(value[3]-'0')*10 + int(value[4]-'0')
	return hour < 24 && minute < 60
}

// IsAvailable reports whether the doctor has any weekly window covering the
// requested day and time. The window check is inclusive on both ends;
// zero-padded HH:MM strings compare correctly as plain strings.
func IsAvailable(doc *Doctor, day, clockTime string) bool {
	if doc == nil || !ValidClockTime(clockTime) {
		return false
	}
	for _, slot := range doc.AvailableSlots {
		if slot.Day != day {
			continue
		}
		if slot.StartTime <= clockTime && clockTime <= slot.EndTime {
			return true
		}
	}
	return false
}
