package correlation

import (
	"strings"

	"seclog/pkg/models"
)

var (
	bruteForceActions = []string{
		"Lock the affected user account temporarily",
		"Implement account lockout policy",
		"Notify the user about suspicious login attempts",
		"Review access logs for the source IP address",
		"Consider implementing multi-factor authentication",
	}
	privilegeActions = []string{
		"Investigate the user account and recent activities",
		"Review privilege assignments",
		"Check for unauthorized group memberships",
		"Implement principle of least privilege",
		"Audit system administrator accounts",
	}
	ransomwareActions = []string{
		"IMMEDIATE: Isolate affected systems from network",
		"Check backup integrity",
		"Identify patient zero and attack vector",
		"Run full antivirus scan",
		"Consider contacting incident response team",
	}
	serviceActions = []string{
		"Verify the service is legitimate",
		"Check service executable signature",
		"Review service permissions and account",
		"Disable service if suspicious",
		"Monitor service activity",
	}
	networkActions = []string{
		"Investigate the remote IP address",
		"Check firewall rules",
		"Review connection logs",
		"Block suspicious IPs if confirmed malicious",
		"Monitor for continued activity",
	}
	fileActions = []string{
		"Verify file changes are authorized",
		"Review file permissions",
		"Check file signature if critical system file",
		"Restore from backup if unauthorized",
		"Monitor for additional changes",
	}
	genericActions = []string{
		"Investigate immediately",
		"Document all findings",
		"Check system logs for related events",
		"Consider quarantining affected system",
		"Escalate to security team",
	}
)

// Recommendations maps an enriched event to an ordered list of response actions.
func (e *Engine) Recommendations(event *models.Event) []string {
	if event == nil {
		return nil
	}
	var actions []string
	switch {
	case strings.Contains(event.ThreatPattern, "Brute Force"):
		actions = bruteForceActions
	case strings.Contains(event.ThreatPattern, "Privilege Escalation"):
		actions = privilegeActions
	case strings.Contains(event.EventType, ransomwareMarker) || strings.Contains(event.ThreatPattern, ransomwareMarker):
		actions = ransomwareActions
	case strings.Contains(event.EventType, "Service"):
		actions = serviceActions
	case strings.Contains(event.Source, "Network") || strings.Contains(event.EventType, "Port"):
		actions = networkActions
	case strings.Contains(event.EventType, "File"):
		actions = fileActions
	case event.ThreatScore >= e.cfg.CriticalThreatScore:
		actions = genericActions
	default:
		return nil
	}
	return append([]string(nil), actions...)
}
