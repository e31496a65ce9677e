package model

// SignalSet holds everything the HTML extractor can pull from a page
// or the crawler can aggregate across a site. A zero SignalSet is a
// valid "nothing found" result.
type SignalSet struct {
	Emails      []string          `json:"emails,omitempty"`
	Phones      []string          `json:"phones,omitempty"`
	SocialLinks map[string]string `json:"social_links,omitempty"`
	INN         string            `json:"inn,omitempty"`
	Description string            `json:"description,omitempty"`
	ContactText string            `json:"contact_text,omitempty"`
	PagesSeen   int               `json:"pages_seen,omitempty"`
}

// Empty reports whether the set carries no signals at all.
func (s *SignalSet) Empty() bool {
	return len(s.Emails) == 0 && len(s.Phones) == 0 && len(s.SocialLinks) == 0 &&
		s.INN == "" && s.Description == "" && s.ContactText == ""
}

// Merge folds other into s. Emails and phones are unioned preserving
// first-seen order; social links and scalar fields are first-write-wins
// so earlier (higher-priority) pages take precedence.
func (s *SignalSet) Merge(other *SignalSet) {
	if other == nil {
		return
	}
	s.Emails = appendUnique(s.Emails, other.Emails)
	s.Phones = appendUnique(s.Phones, other.Phones)
	for platform, link := range other.SocialLinks {
		if s.SocialLinks == nil {
			s.SocialLinks = make(map[string]string)
		}
		if _, ok := s.SocialLinks[platform]; !ok {
			s.SocialLinks[platform] = link
		}
	}
	if s.INN == "" {
		s.INN = other.INN
	}
	if s.Description == "" {
		s.Description = other.Description
	}
	if s.ContactText == "" {
		s.ContactText = other.ContactText
	}
}

func appendUnique(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range src {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}
