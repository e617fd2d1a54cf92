package service

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

// ── 节假日 ICS 解析器 ──────────────────────────────────────────
//
// 职责：将标准 iCalendar (RFC 5545) 节假日日历解析为日期集合。
//
//   - DTSTART 为起始日，DTEND 为结束日（不含），无 DTEND 视为单日
//   - RRULE 仅支持 FREQ=YEARLY / FREQ=WEEKLY，配合 COUNT / UNTIL / INTERVAL
//   - EXDATE 排除指定日期
//   - 只返回 [from, to) 区间内的日期
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize  = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout = 30 * time.Second
	icsMaxSpanDays  = 366
)

// OpenHolidaySource 打开节假日日历：http(s)/webcal 地址走网络，其余视为本地文件路径
func OpenHolidaySource(source string) (io.ReadCloser, error) {
	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "webcal://") {
		return FetchICSContent(source)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("打开 ICS 文件失败: %w", err)
	}
	return f, nil
}

// FetchICSContent 从 URL 获取 ICS 内容
func FetchICSContent(rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小，防止恶意 URL 返回超大内容导致 OOM
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// ParseHolidayICS 解析 ICS 内容，返回 [from, to) 内的节假日（key 为 2006-01-02，value 为节日名称）
func ParseHolidayICS(reader io.Reader, loc *time.Location, from, to time.Time) (map[string]string, error) {
	cal, err := ics.ParseCalendar(reader)
	if err != nil {
		return nil, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	lo := dateOnly(from.In(loc))
	hi := dateOnly(to.In(loc))
	holidays := make(map[string]string)

	for _, evt := range cal.Events() {
		name := ""
		if summary := evt.GetProperty(ics.ComponentPropertySummary); summary != nil {
			name = strings.TrimSpace(summary.Value)
		}

		start, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
		if err != nil {
			continue
		}
		start = dateOnly(start)
		span := 1
		if end, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc); err == nil {
			if days := int(dateOnly(end).Sub(start).Hours() / 24); days > 1 {
				span = days
			}
		}
		if span > icsMaxSpanDays {
			span = icsMaxSpanDays
		}

		exDates := parseExDates(evt, loc)
		for _, occ := range occurrences(evt, start, hi) {
			if exDates[occ.Format("20060102")] {
				continue
			}
			for d := 0; d < span; d++ {
				day := occ.AddDate(0, 0, d)
				if day.Before(lo) || !day.Before(hi) {
					continue
				}
				holidays[day.Format("2006-01-02")] = name
			}
		}
	}
	return holidays, nil
}

// occurrences 根据 RRULE 展开事件起始日，截止到 until（不含）
func occurrences(evt *ics.VEvent, start, until time.Time) []time.Time {
	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		return []time.Time{start}
	}

	rule := parseRRule(rruleProp.Value)
	interval := rule.interval
	if interval < 1 {
		interval = 1
	}
	step := func(t time.Time) time.Time { return t.AddDate(interval, 0, 0) }
	switch rule.freq {
	case "YEARLY":
	case "WEEKLY":
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 7*interval) }
	default:
		return []time.Time{start}
	}

	var result []time.Time
	current := start
	for count := 0; ; count++ {
		if rule.count > 0 && count >= rule.count {
			break
		}
		if !rule.until.IsZero() && current.After(rule.until) {
			break
		}
		if !current.Before(until) {
			break
		}
		result = append(result, current)
		current = step(current)
	}
	return result
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=YEARLY;COUNT=5;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			fmt.Sscanf(kv[1], "%d", &r.interval)
		case "COUNT":
			fmt.Sscanf(kv[1], "%d", &r.count)
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				t, _ = time.Parse("20060102", kv[1])
			}
			r.until = t
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, v := range strings.Split(prop.Value, ",") {
			v = strings.TrimSpace(v)
			t, err := time.Parse("20060102T150405Z", v)
			if err == nil {
				t = t.In(loc)
			} else if t, err = time.ParseInLocation("20060102T150405", v, loc); err != nil {
				t, err = time.ParseInLocation("20060102", v, loc)
			}
			if err == nil {
				exDates[t.Format("20060102")] = true
			}
		}
	}
	return exDates
}

// dateOnly 去掉时分秒，保留时区
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	// 尝试多种 ICS 日期格式
	formats := []string{
		"20060102T150405Z",
		"20060102T150405",
		"20060102",
	}

	// 检查 TZID 参数
	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range formats {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}
