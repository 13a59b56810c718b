package repair

import (
	"regexp"
	"strings"
)

// validLucideIcons is the allow-list of icon names the pinned lucide-react
// build actually exports. Anything else breaks the bundle at import time.
var validLucideIcons = map[string]bool{
	"Activity": true, "AlertCircle": true, "AlertTriangle": true, "Archive": true,
	"ArrowDown": true, "ArrowLeft": true, "ArrowRight": true, "ArrowUp": true,
	"Award": true, "BarChart": true, "Bell": true, "Bookmark": true, "Box": true,
	"Briefcase": true, "Calendar": true, "Camera": true, "Check": true,
	"CheckCircle": true, "ChevronDown": true, "ChevronLeft": true,
	"ChevronRight": true, "ChevronUp": true, "Circle": true, "Clipboard": true,
	"Clock": true, "Cloud": true, "Code": true, "Copy": true, "CreditCard": true,
	"Database": true, "Download": true, "Edit": true, "ExternalLink": true,
	"Eye": true, "EyeOff": true, "Facebook": true, "File": true, "FileText": true,
	"Filter": true, "Flag": true, "Folder": true, "Github": true, "Globe": true,
	"Grid": true, "Heart": true, "Home": true, "Image": true, "Inbox": true,
	"Info": true, "Instagram": true, "Layers": true, "Layout": true, "Link": true,
	"List": true, "Loader": true, "Lock": true, "LogIn": true, "LogOut": true,
	"Mail": true, "Map": true, "MapPin": true, "Menu": true, "MessageCircle": true,
	"MessageSquare": true, "Mic": true, "Minus": true, "Monitor": true,
	"Moon": true, "MoreHorizontal": true, "MoreVertical": true, "Music": true,
	"Package": true, "Paperclip": true, "Pause": true, "Pencil": true,
	"Phone": true, "PieChart": true, "Play": true, "Plus": true, "Power": true,
	"Printer": true, "RefreshCw": true, "Repeat": true, "Save": true,
	"Search": true, "Send": true, "Settings": true, "Share": true, "Share2": true,
	"Shield": true, "ShoppingBag": true, "ShoppingCart": true, "Shuffle": true,
	"Slash": true, "Sliders": true, "Smartphone": true, "Speaker": true,
	"Square": true, "Star": true, "Sun": true, "Tag": true, "Target": true,
	"Terminal": true, "ThumbsDown": true, "ThumbsUp": true, "Trash": true,
	"Trash2": true, "TrendingDown": true, "TrendingUp": true, "Truck": true,
	"Twitter": true, "Type": true, "Unlock": true, "Upload": true, "User": true,
	"UserCheck": true, "UserMinus": true, "UserPlus": true, "Users": true,
	"Video": true, "Volume2": true, "Wifi": true, "X": true, "XCircle": true,
	"Youtube": true, "Zap": true, "ZoomIn": true, "ZoomOut": true,
}

const fallbackIcon = "Circle"

var lucideImportRe = regexp.MustCompile(`import\s*\{([^}]*)\}\s*from\s*['"]lucide-react['"]`)

// FixInvalidIcons rewrites references to icons absent from the allow-list,
// replacing both the import and every usage site with the fallback icon.
// Returns the mutated set of files and the number of replaced names.
func FixInvalidIcons(files map[string]string) (map[string]string, int) {
	fixed := 0
	out := make(map[string]string, len(files))
	for p, content := range files {
		m := lucideImportRe.FindStringSubmatch(content)
		if m == nil {
			out[p] = content
			continue
		}
		names := splitImportNames(m[1])
		var kept []string
		var invalid []string
		hasFallback := false
		for _, n := range names {
			base := n
			if i := strings.Index(n, " as "); i >= 0 {
				base = strings.TrimSpace(n[:i])
			}
			if validLucideIcons[base] {
				kept = append(kept, n)
				if base == fallbackIcon {
					hasFallback = true
				}
				continue
			}
			invalid = append(invalid, base)
		}
		if len(invalid) == 0 {
			out[p] = content
			continue
		}
		if !hasFallback {
			kept = append(kept, fallbackIcon)
		}
		updated := lucideImportRe.ReplaceAllString(content,
			"import { "+strings.Join(kept, ", ")+" } from 'lucide-react'")
		for _, bad := range invalid {
			usage := regexp.MustCompile(`\b` + regexp.QuoteMeta(bad) + `\b`)
			updated = usage.ReplaceAllString(updated, fallbackIcon)
			fixed++
		}
		out[p] = updated
	}
	return out, fixed
}

func splitImportNames(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
