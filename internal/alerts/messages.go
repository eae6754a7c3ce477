package alerts

import (
	"fmt"
	"strings"
	"time"
)

// Severity levels for critical event alerts.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

func formatUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// ipBlockedMessage builds the subject and plain-text body for a new block.
func ipBlockedMessage(ip, violationType, path string, now time.Time, blockDuration time.Duration) (subject, body string) {
	subject = fmt.Sprintf("[SECURITY ALERT] IP Blocked: %s", ip)

	var b strings.Builder
	b.WriteString("An IP address has been automatically blocked due to suspicious activity.\n\n")
	fmt.Fprintf(&b, "IP Address: %s\n", ip)
	fmt.Fprintf(&b, "Violation Type: %s\n", violationType)
	fmt.Fprintf(&b, "Last Request Path: %s\n", path)
	fmt.Fprintf(&b, "Blocked At: %s\n\n", formatUTC(now))
	fmt.Fprintf(&b, "The IP will be automatically unblocked after %s unless additional violations occur.\n\n", blockDuration)
	b.WriteString("Recommended actions:\n")
	b.WriteString("- Monitor logs for continued attack attempts\n")
	b.WriteString("- Consider permanent blocking if attacks persist\n")
	b.WriteString("- Review firewall rules\n")

	return subject, b.String()
}

// highVolumeMessage builds the subject and body for the aggregate attack alert.
func highVolumeMessage(attackCount, uniqueIPs int, topPaths []string, now time.Time) (subject, body string) {
	subject = fmt.Sprintf("[SECURITY WARNING] High Volume Attack - %d requests", attackCount)

	var b strings.Builder
	b.WriteString("The system has detected an unusually high volume of malicious requests.\n\n")
	fmt.Fprintf(&b, "Total Attacks: %d\n", attackCount)
	fmt.Fprintf(&b, "Unique IPs: %d\n", uniqueIPs)
	fmt.Fprintf(&b, "Time: %s\n\n", formatUTC(now))
	if len(topPaths) > 0 {
		b.WriteString("Most targeted paths:\n")
		if len(topPaths) > 10 {
			topPaths = topPaths[:10]
		}
		for _, p := range topPaths {
			fmt.Fprintf(&b, "- %s\n", p)
		}
		b.WriteString("\n")
	}
	b.WriteString("Recommended actions:\n")
	b.WriteString("- Review server logs for additional context\n")
	b.WriteString("- Consider enabling stricter rate limiting\n")
	b.WriteString("- Monitor server resources\n")

	return subject, b.String()
}

// criticalEventMessage builds the subject and body for a critical event alert.
func criticalEventMessage(eventType, details, severity string, now time.Time) (subject, body string) {
	subject = fmt.Sprintf("[%s] Security Event: %s", severity, eventType)

	var b strings.Builder
	fmt.Fprintf(&b, "Event Type: %s\n", eventType)
	fmt.Fprintf(&b, "Severity: %s\n", severity)
	fmt.Fprintf(&b, "Time: %s\n\n", formatUTC(now))
	b.WriteString("Details:\n")
	b.WriteString(details)
	b.WriteString("\n\nPlease investigate this event immediately.\n")

	return subject, b.String()
}
