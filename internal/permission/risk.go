package permission

import (
	"regexp"
	"strings"

	"github.com/codecoder/codecoder/pkg/types"
)

// baseRisk is the per-tool default risk table; unknown tools default to
// medium.
var baseRisk = map[string]types.RiskLevel{
	"Read": types.RiskSafe, "Glob": types.RiskSafe, "Grep": types.RiskSafe, "LS": types.RiskSafe,
	"WebFetch": types.RiskLow, "WebSearch": types.RiskLow,
	"Write": types.RiskMedium, "Edit": types.RiskMedium,
	"Bash": types.RiskHigh, "Task": types.RiskHigh,
}

// BaseRisk returns a tool's base risk before any input-specific adjustment.
func BaseRisk(tool string) types.RiskLevel {
	if r, ok := baseRisk[tool]; ok {
		return r
	}
	return types.RiskMedium
}

// bashRule is one entry of the ordered-by-severity bash command rule list.
type bashRule struct {
	risk types.RiskLevel
	re   *regexp.Regexp
}

var bashRules = []bashRule{
	// critical
	{types.RiskCritical, regexp.MustCompile(`\bsudo\b`)},
	{types.RiskCritical, regexp.MustCompile(`\brm\s+-rf\s+/(\s|$)`)},
	{types.RiskCritical, regexp.MustCompile(`\b(shutdown|reboot|init\s+0|init\s+6)\b`)},
	{types.RiskCritical, regexp.MustCompile(`\b(mkfs|fdisk|dd)\b`)},
	{types.RiskCritical, regexp.MustCompile(`\b(chmod|chown)\s+.*-R.*\s+/(\s|$)`)},
	{types.RiskCritical, regexp.MustCompile(`\bgit\s+push\s+.*--force\b`)},

	// high
	{types.RiskHigh, regexp.MustCompile(`\brm\s+-rf?\s+(/\w|~)`)},
	{types.RiskHigh, regexp.MustCompile(`\bgit\s+push\b`)},
	{types.RiskHigh, regexp.MustCompile(`\bgit\s+reset\s+--hard\b`)},
	{types.RiskHigh, regexp.MustCompile(`\bcurl\b.*-X\s*(POST|PUT|DELETE|PATCH)`)},
	{types.RiskHigh, regexp.MustCompile(`\bnpm\s+publish\b`)},
	{types.RiskHigh, regexp.MustCompile(`\bcargo\s+publish\b`)},
	{types.RiskHigh, regexp.MustCompile(`\bdocker\s+(push|rm|rmi)\b`)},

	// medium
	{types.RiskMedium, regexp.MustCompile(`\bgit\s+(add|commit|checkout|branch)\b`)},
	{types.RiskMedium, regexp.MustCompile(`\bnpm\s+(install|uninstall)\b`)},
	{types.RiskMedium, regexp.MustCompile(`\bcargo\s+(add|remove)\b`)},
	{types.RiskMedium, regexp.MustCompile(`\b(mkdir|touch)\b`)},

	// low
	{types.RiskLow, regexp.MustCompile(`\bgit\s+(status|log|diff|show|branch\s+--list)\b`)},
	{types.RiskLow, regexp.MustCompile(`\bcurl\b(.*-X\s*GET)?`)},
	{types.RiskLow, regexp.MustCompile(`\b(ls|cat|head|tail|pwd|which|whoami|echo)\b`)},
}

// AssessBashCommand returns the highest-severity risk matched by command,
// combining the ordered bash rule list with a structural pass over each
// parsed sub-command's dangerous-command-on-sensitive-path targets, and
// defaulting to high when nothing matches at all.
func AssessBashCommand(command string) types.RiskLevel {
	highest := types.RiskLevel(-1)
	for _, rule := range bashRules {
		if rule.re.MatchString(command) && rule.risk > highest {
			highest = rule.risk
		}
	}

	if cmds, err := ParseBashCommand(command); err == nil {
		for _, cmd := range cmds {
			if !IsDangerousCommand(cmd.Name) {
				continue
			}
			for _, path := range ExtractPaths(cmd) {
				if risk := riskForDangerousPathTarget(path); risk > highest {
					highest = risk
				}
			}
		}
	}

	if highest < 0 {
		return types.RiskHigh
	}
	return highest
}

// riskForDangerousPathTarget grades the risk of a rm/chmod/chown/dd-style
// command acting on path: system directories and the filesystem root are
// critical, any other absolute or home-relative path is high, everything
// else (paths scoped under the working directory) is medium.
func riskForDangerousPathTarget(path string) types.RiskLevel {
	switch path {
	case "/", "/*":
		return types.RiskCritical
	}
	for _, prefix := range []string{"/etc", "/usr", "/var", "/boot", "/bin", "/sbin", "/sys"} {
		if strings.HasPrefix(path, prefix) {
			return types.RiskCritical
		}
	}
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "~") {
		return types.RiskHigh
	}
	return types.RiskMedium
}

var sensitivePathRe = regexp.MustCompile(`\.(env|pem|key|crt|p12)$`)

// AssessWritePath adjusts the base risk for a Write/Edit tool call targeting
// path.
func AssessWritePath(path string) types.RiskLevel {
	if sensitivePathRe.MatchString(path) {
		return types.RiskHigh
	}
	if strings.HasPrefix(path, "/etc") || strings.HasPrefix(path, "/usr") || strings.HasPrefix(path, "/var") {
		return types.RiskHigh
	}
	switch filepathBase(path) {
	case "package.json", "Cargo.toml", "go.mod":
		return types.RiskMedium
	}
	return types.RiskMedium
}

func filepathBase(path string) string {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

// AdjustForContext applies the adaptive-adjustment formula to base, clamping
// to the safe..critical range.
func AdjustForContext(base types.RiskLevel, ec types.ExecutionContext) types.RiskLevel {
	adjustment := 0
	applied := false

	total := ec.Errors + ec.Successes
	if total > 0 {
		successRate := float64(ec.Successes) / float64(total)
		if successRate >= 0.95 && ec.Errors == 0 {
			adjustment--
			applied = true
		}
	}
	if ec.Errors >= 1 {
		adjustment++
		applied = true
	}
	if ec.Errors >= 3 {
		adjustment++
	}
	if ec.TimeOfDay == "after_hours" && ec.ProjectSensitivity == "high" {
		adjustment++
		applied = true
	}
	if ec.ProjectSensitivity == "high" && !applied {
		adjustment++
	}

	return (base + types.RiskLevel(adjustment)).Clamp()
}
