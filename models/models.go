package models

// Confidence is a coarse quality indicator for extracted facts
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders confidence labels so they can be compared (low < medium < high).
// Unknown labels rank below low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	default:
		return 0
	}
}

// Provenance records where a piece of extracted data came from
type Provenance string

const (
	ProvenanceProgrammatic Provenance = "programmatic"
	ProvenanceAI           Provenance = "ai"
	ProvenanceMerged       Provenance = "merged"
)

// Approach values reported in responses
const (
	ApproachFast       = "fast"
	ApproachAIEnhanced = "ai_enhanced"
)

// Field names used for per-field confidence and provenance
const (
	FieldFoundedYear   = "founded_year"
	FieldEmployeeCount = "employee_count"
	FieldHeadquarters  = "headquarters"
	FieldMission       = "mission"
	FieldLocations     = "locations"
	FieldIndustry      = "industry"
	FieldCEO           = "ceo"
)

// KeyFactFields are the facts counted by the confidence scorer
var KeyFactFields = []string{FieldFoundedYear, FieldEmployeeCount, FieldHeadquarters, FieldMission}

// ScalarFields are the single-valued fields of CompanyFacts, in merge order
var ScalarFields = []string{FieldFoundedYear, FieldEmployeeCount, FieldHeadquarters, FieldMission, FieldIndustry, FieldCEO}

// CompanyFacts is the structured company information extracted from a site
type CompanyFacts struct {
	FoundedYear     string                `json:"founded_year"`
	EmployeeCount   string                `json:"employee_count"`
	Headquarters    string                `json:"headquarters"`
	Mission         string                `json:"mission"`
	Locations       []string              `json:"locations"`
	Industry        string                `json:"industry"`
	CEO             string                `json:"ceo"`
	Confidence      Confidence            `json:"confidence"`
	Provenance      Provenance            `json:"provenance"`
	FieldConfidence map[string]Confidence `json:"field_confidence,omitempty"`
	FieldProvenance map[string]Provenance `json:"field_provenance,omitempty"`
	Profile         *CompanyProfile       `json:"profile,omitempty"` // Narrative sections, only filled by AI
}

// Get returns the value of a scalar field, or the locations joined with "; "
func (f CompanyFacts) Get(field string) string {
	switch field {
	case FieldFoundedYear:
		return f.FoundedYear
	case FieldEmployeeCount:
		return f.EmployeeCount
	case FieldHeadquarters:
		return f.Headquarters
	case FieldMission:
		return f.Mission
	case FieldIndustry:
		return f.Industry
	case FieldCEO:
		return f.CEO
	case FieldLocations:
		return joinLocations(f.Locations)
	}
	return ""
}

// Set assigns a scalar field. Unknown fields are ignored.
func (f *CompanyFacts) Set(field, value string) {
	switch field {
	case FieldFoundedYear:
		f.FoundedYear = value
	case FieldEmployeeCount:
		f.EmployeeCount = value
	case FieldHeadquarters:
		f.Headquarters = value
	case FieldMission:
		f.Mission = value
	case FieldIndustry:
		f.Industry = value
	case FieldCEO:
		f.CEO = value
	}
}

// Has reports whether a field is populated
func (f CompanyFacts) Has(field string) bool {
	if field == FieldLocations {
		return len(f.Locations) > 0
	}
	return f.Get(field) != ""
}

// KeyFieldCount returns how many of KeyFactFields are populated
func (f CompanyFacts) KeyFieldCount() int {
	n := 0
	for _, field := range KeyFactFields {
		if f.Has(field) {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers can build a replacement without sharing maps
func (f CompanyFacts) Clone() CompanyFacts {
	out := f
	out.Locations = append([]string{}, f.Locations...)
	out.FieldConfidence = make(map[string]Confidence, len(f.FieldConfidence))
	for k, v := range f.FieldConfidence {
		out.FieldConfidence[k] = v
	}
	out.FieldProvenance = make(map[string]Provenance, len(f.FieldProvenance))
	for k, v := range f.FieldProvenance {
		out.FieldProvenance[k] = v
	}
	if f.Profile != nil {
		p := *f.Profile
		out.Profile = &p
	}
	return out
}

func joinLocations(locations []string) string {
	out := ""
	for i, l := range locations {
		if i > 0 {
			out += "; "
		}
		out += l
	}
	return out
}

// CompanyProfile holds the narrative profile sections produced by the AI enhancer
type CompanyProfile struct {
	AboutUs    string `json:"about_us"`
	OurCulture string `json:"our_culture"`
	OurTeam    string `json:"our_team"`
	Noteworthy string `json:"noteworthy_and_differentiated"`
	Locations  string `json:"locations"`
}

// Section is one named content block of a page
type Section struct {
	Name           string `json:"name"`
	ContentSummary string `json:"content_summary"`
	RawExcerpt     string `json:"raw_excerpt"`
	Category       string `json:"category,omitempty"` // Canonical name (about, culture, team...) when matched
}

// KeyValue is a labelled value found in definition-like markup or text
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MediaKind is the kind of a discovered media asset
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaIcon     MediaKind = "icon"
)

// Thumbnail sources
const (
	ThumbnailPoster      = "poster"
	ThumbnailPlatform    = "platform"
	ThumbnailPlaceholder = "placeholder"
)

// Thumbnail is the preview reference attached to a video asset
type Thumbnail struct {
	URL           string `json:"url"`
	Source        string `json:"source"`             // poster, platform or placeholder
	Platform      string `json:"platform,omitempty"` // youtube, vimeo, dailymotion, wistia
	IsPlaceholder bool   `json:"is_placeholder"`
}

// MediaAsset is one discovered image, video, document or icon
type MediaAsset struct {
	URL       string     `json:"url"`
	Kind      MediaKind  `json:"type"`
	Context   string     `json:"context,omitempty"`
	Priority  int        `json:"priority"`
	Width     int        `json:"width,omitempty"`
	Height    int        `json:"height,omitempty"`
	Poster    string     `json:"poster,omitempty"`
	Thumbnail *Thumbnail `json:"thumbnail,omitempty"`
	Source    string     `json:"source"` // html, ai or html+ai
}

// MediaMention is a media reference reported by the AI enhancer
type MediaMention struct {
	URL     string    `json:"url"`
	Kind    MediaKind `json:"type"`
	Context string    `json:"context,omitempty"`
}

// MediaGroups splits assets by kind
type MediaGroups struct {
	Images    []MediaAsset `json:"images"`
	Videos    []MediaAsset `json:"videos"`
	Documents []MediaAsset `json:"documents"`
	Icons     []MediaAsset `json:"icons"`
}

// MediaSummary counts assets per kind
type MediaSummary struct {
	TotalAssets    int `json:"total_assets"`
	ImagesCount    int `json:"images_count"`
	VideosCount    int `json:"videos_count"`
	DocumentsCount int `json:"documents_count"`
	IconsCount     int `json:"icons_count"`
}

// Pagination describes one page of a cursor-paginated listing
type Pagination struct {
	NextCursor       *string `json:"next_cursor"`
	HasMore          bool    `json:"has_more"`
	TotalCount       int     `json:"total_count"`
	CurrentPageStart int     `json:"current_page_start"`
	CurrentPageEnd   int     `json:"current_page_end"`
}

// ErrorInfo is the error descriptor embedded in response bodies
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// AboutPageAnalysis describes one About-page candidate that was examined
type AboutPageAnalysis struct {
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	ContentLength int        `json:"content_length"`
	Score         float64    `json:"score"`
	Confidence    Confidence `json:"confidence"`
	Validated     bool       `json:"validated"`
	Error         string     `json:"error,omitempty"`
}

// AIEnhancement reports whether and why the AI enhancer was used
type AIEnhancement struct {
	Used   bool   `json:"used"`
	Reason string `json:"reason"`
	Note   string `json:"note,omitempty"`
}

// TextVideo is a video entry of the text endpoint's compact media block
type TextVideo struct {
	URL                    string `json:"url"`
	ThumbnailURL           string `json:"thumbnail_url"`
	ThumbnailType          string `json:"thumbnail_type"`
	IsPlaceholderThumbnail bool   `json:"is_placeholder_thumbnail"`
}

// TextMedia is the compact media block of the text endpoint
type TextMedia struct {
	Images []string    `json:"images"`
	Videos []TextVideo `json:"videos"`
}

// ScrapingData is the payload of the text endpoint
type ScrapingData struct {
	PageTitle     string         `json:"page_title"`
	URL           string         `json:"url"`
	Language      string         `json:"language"`
	Summary       string         `json:"summary"`
	Sections      []Section      `json:"sections"`
	KeyValues     []KeyValue     `json:"key_values"`
	Media         TextMedia      `json:"media"`
	Notes         string         `json:"notes"`
	AIEnhancement *AIEnhancement `json:"ai_enhancement,omitempty"`
}

// TextResponse is returned by /scrape/text
type TextResponse struct {
	StatusCode   int          `json:"statusCode"`
	Message      string       `json:"message"`
	ScrapingData ScrapingData `json:"scrapingData"`
	Error        *ErrorInfo   `json:"error,omitempty"`
}

// MediaResponse is returned by /scrape/media
type MediaResponse struct {
	URL          string       `json:"url"`
	MediaAssets  MediaGroups  `json:"media_assets"`
	MediaSummary MediaSummary `json:"media_summary"`
	Pagination   Pagination   `json:"pagination"`
	Error        *ErrorInfo   `json:"error,omitempty"`
}

// CompanyResponse is returned by /scrape/intelligent and /scrape/fast
type CompanyResponse struct {
	Success           bool                `json:"success"`
	URL               string              `json:"url"`
	BestAboutURL      string              `json:"best_about_url"`
	Title             string              `json:"title"`
	Description       string              `json:"description"`
	Content           string              `json:"content"`
	CompanyInfo       CompanyFacts        `json:"company_info"`
	Sections          []Section           `json:"sections"`
	KeyValues         []KeyValue          `json:"key_values"`
	AboutPagesFound   int                 `json:"about_pages_found"`
	AboutPageAnalysis []AboutPageAnalysis `json:"about_page_analysis"`
	MediaAssets       *MediaGroups        `json:"media_assets"`
	MediaSummary      *MediaSummary       `json:"media_summary"`
	AIEnhancement     AIEnhancement       `json:"ai_enhancement"`
	ProcessingTime    float64             `json:"processing_time_seconds"`
	ApproachUsed      string              `json:"approach_used"`
	Notes             []string            `json:"notes"`
	Error             *ErrorInfo          `json:"error,omitempty"`
}

// EnhanceResponse is returned by /scrape/enhance
type EnhanceResponse struct {
	Success        bool          `json:"success"`
	URL            string        `json:"url"`
	Summary        string        `json:"summary"`
	CompanyInfo    CompanyFacts  `json:"company_info"`
	AIEnhancement  AIEnhancement `json:"ai_enhancement"`
	ProcessingTime float64       `json:"processing_time_seconds"`
	ApproachUsed   string        `json:"approach_used"`
	Notes          []string      `json:"notes"`
	Error          *ErrorInfo    `json:"error,omitempty"`
}

// OllamaRequest represents a request to the Ollama generate API
type OllamaRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Format  string                 `json:"format,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// OllamaResponse represents a response from the Ollama generate API
type OllamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	Error     string `json:"error,omitempty"`
}
