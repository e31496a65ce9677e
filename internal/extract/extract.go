// Package extract pulls contact signals out of raw HTML. It is pure:
// no I/O, no failures. Malformed markup yields whatever partial set
// the patterns still match.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/aragant-group/b2b-intel/internal/model"
)

const (
	maxEmails     = 10
	maxPhones     = 10
	excerptLength = 1500
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// Russian numbers only: +7 or a leading 8 followed by the ten
	// national digits in the usual groupings.
	phoneRe = regexp.MustCompile(`(?:\+7|8)[\s\-(]*\d{3}[\s\-)]*\d{3}[\s\-]*\d{2}[\s\-]*\d{2}`)

	// \b is ASCII-only in RE2 and never matches next to Cyrillic, so
	// the label match is anchored by the separator class instead.
	innRe = regexp.MustCompile(`(?i)(?:ИНН|INN)[\s:№]{0,5}(\d{10,12})`)

	metaDescRe    = regexp.MustCompile(`(?is)<meta[^>]+name=["']description["'][^>]*content=["']([^"']+)["']`)
	metaDescRevRe = regexp.MustCompile(`(?is)<meta[^>]+content=["']([^"']+)["'][^>]*name=["']description["']`)

	scriptRe = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
)

// socialPatterns maps platform name to its profile URL pattern. Only
// the first profile per platform is kept.
var socialPatterns = []struct {
	platform string
	re       *regexp.Regexp
}{
	{"vk", regexp.MustCompile(`https?://(?:www\.)?vk\.com/[\w.\-]+`)},
	{"telegram", regexp.MustCompile(`https?://(?:t\.me|telegram\.me)/[\w.\-]+`)},
	{"instagram", regexp.MustCompile(`https?://(?:www\.)?instagram\.com/[\w.\-]+`)},
	{"youtube", regexp.MustCompile(`https?://(?:www\.)?youtube\.com/[\w@/.\-]+`)},
	{"whatsapp", regexp.MustCompile(`https?://(?:wa\.me|api\.whatsapp\.com)/[\w?=+%.\-/]*`)},
}

// imageExtensions catch srcset-style false positives such as
// "logo@2x.png" that match the email pattern.
var imageExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "webp": {}, "svg": {}, "ico": {}, "bmp": {},
}

// contactKeywords mark a URL as a contact-ish page worth excerpting.
var contactKeywords = []string{"контакт", "contact", "о нас", "about", "связ", "обратная"}

// Page extracts every signal the patterns find in html. pageURL is
// used only to decide whether the page deserves a contact excerpt.
func Page(html, pageURL string) *model.SignalSet {
	set := &model.SignalSet{}

	set.Emails = extractEmails(html)
	set.Phones = extractPhones(html)
	set.SocialLinks = extractSocials(html)
	set.INN = extractINN(html)
	set.Description = extractMetaDescription(html)

	if IsContactPage(pageURL) {
		set.ContactText = textExcerpt(html)
	}

	return set
}

func extractEmails(html string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range emailRe.FindAllString(html, -1) {
		email := model.NormalizeEmail(m)
		if isImageName(email) {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
		if len(out) >= maxEmails {
			break
		}
	}
	return out
}

func isImageName(email string) bool {
	dot := strings.LastIndexByte(email, '.')
	if dot < 0 {
		return false
	}
	_, ok := imageExtensions[email[dot+1:]]
	return ok
}

func extractPhones(html string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range phoneRe.FindAllString(html, -1) {
		raw := strings.TrimSpace(m)
		norm := model.NormalizePhone(raw)
		if len(norm) != 11 {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, raw)
		if len(out) >= maxPhones {
			break
		}
	}
	return out
}

func extractSocials(html string) map[string]string {
	var links map[string]string
	for _, sp := range socialPatterns {
		if m := sp.re.FindString(html); m != "" {
			if links == nil {
				links = make(map[string]string)
			}
			links[sp.platform] = m
		}
	}
	return links
}

func extractINN(html string) string {
	m := innRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	if !model.ValidINN(m[1]) {
		return ""
	}
	return m[1]
}

func extractMetaDescription(html string) string {
	if m := metaDescRe.FindStringSubmatch(html); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := metaDescRevRe.FindStringSubmatch(html); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// IsContactPage reports whether the URL looks like a contact or about
// page. Cyrillic path segments arrive percent-encoded, so the check
// runs on the unescaped lower-cased URL.
func IsContactPage(rawURL string) bool {
	unescaped, err := url.QueryUnescape(rawURL)
	if err != nil {
		unescaped = rawURL
	}
	lower := strings.ToLower(unescaped)
	for _, kw := range contactKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// textExcerpt strips markup and returns the leading run of visible text.
func textExcerpt(html string) string {
	html = scriptRe.ReplaceAllString(html, " ")
	html = styleRe.ReplaceAllString(html, " ")
	html = tagRe.ReplaceAllString(html, " ")
	text := strings.Join(strings.Fields(html), " ")
	if len(text) > excerptLength {
		// Cut on a rune boundary.
		runes := []rune(text)
		if len(runes) > excerptLength {
			runes = runes[:excerptLength]
		}
		text = string(runes)
	}
	return text
}
