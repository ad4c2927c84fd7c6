package synth

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Lumos-Labs-HQ/orgseed/internal/types"
)

const defaultMaxLength = 255

var (
	firstNames = []string{"John", "Jane", "Alice", "Bob", "Charlie", "Diana", "Eve", "Frank", "Grace", "Henry", "Priya", "Mateo", "Yuki", "Amara"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis", "Rodriguez", "Martinez", "Okafor", "Tanaka"}
	companies  = []string{"Acme", "Globex", "Initech", "Umbrella", "Stark Industries", "Wayne Enterprises", "Hooli", "Vandelay", "Soylent", "Cyberdyne"}
	suffixes   = []string{"Inc", "LLC", "Ltd", "Group", "Holdings", "Corp"}
	titles     = []string{"Account Executive", "VP of Sales", "Operations Manager", "CTO", "Marketing Director", "Support Engineer", "Procurement Lead"}
	streets    = []string{"Main Street", "Oak Avenue", "Market Street", "Elm Road", "Harbor Way", "Sunset Boulevard"}
	cities     = []string{"Springfield", "Riverton", "Lakeside", "Fairview", "Georgetown", "Madison", "Clinton"}
	industries = []string{"Technology", "Finance", "Healthcare", "Retail", "Manufacturing", "Education", "Energy"}
	sentences  = []string{
		"This is a sample record generated for testing purposes.",
		"Lorem ipsum dolor sit amet, consectetur adipiscing elit.",
		"The quick brown fox jumps over the lazy dog.",
		"Follow up with the customer about renewal terms.",
		"Synthetic data created for a demo environment.",
	}
	words = []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
)

// DataGenerator produces scalar values. Every value is derived from a PRNG
// seeded with (seed, entity, field, index), so the same inputs always yield
// the same output and concurrent callers share no state.
type DataGenerator struct {
	seed    int64
	session string
	base    time.Time
}

func NewDataGenerator(seed int64, session string, base time.Time) *DataGenerator {
	return &DataGenerator{
		seed:    seed,
		session: session,
		base:    base.UTC().Truncate(24 * time.Hour),
	}
}

func (g *DataGenerator) rng(entity, field string, index int) *rand.Rand {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s|%s|%s|%d", g.seed, g.session, entity, field, index)
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// GenerateForField returns a value for a scalar field, or false for types
// it cannot produce.
func (g *DataGenerator) GenerateForField(entity string, f *types.FieldDescriptor, index int) (interface{}, bool) {
	r := g.rng(entity, f.Name, index)

	switch f.Type {
	case types.FieldString, types.FieldTextArea, types.FieldCombobox, types.FieldEncrypted:
		return g.generateText(r, entity, f, index), true
	case types.FieldEmail:
		return g.generateEmail(entity, index, maxLength(f)), true
	case types.FieldPhone:
		return truncate(generatePhone(r), maxLength(f)), true
	case types.FieldURL:
		return truncate(fmt.Sprintf("https://www.example.com/%s/%d", strings.ToLower(sanitize(entity)), index+1), maxLength(f)), true
	case types.FieldInt:
		return generateInt(r, f), true
	case types.FieldDouble, types.FieldCurrency:
		return generateDecimal(r, f), true
	case types.FieldPercent:
		return roundTo(r.Float64()*100, scaleOf(f)), true
	case types.FieldBoolean:
		return r.Intn(2) == 1, true
	case types.FieldDate:
		return g.base.AddDate(0, 0, -r.Intn(365)).Format("2006-01-02"), true
	case types.FieldDateTime:
		ts := g.base.AddDate(0, 0, -r.Intn(365)).Add(time.Duration(r.Intn(86400)) * time.Second)
		return ts.Format("2006-01-02T15:04:05.000Z"), true
	case types.FieldTime:
		return fmt.Sprintf("%02d:%02d:00.000Z", 8+r.Intn(10), r.Intn(4)*15), true
	default:
		return nil, false
	}
}

func (g *DataGenerator) generateText(r *rand.Rand, entity string, f *types.FieldDescriptor, index int) string {
	limit := maxLength(f)
	nameLower := strings.ToLower(f.Name)

	var value string
	switch {
	case strings.Contains(nameLower, "email"):
		return g.generateEmail(entity, index, limit)
	case strings.Contains(nameLower, "firstname"):
		value = pick(r, firstNames)
	case strings.Contains(nameLower, "lastname"):
		value = pick(r, lastNames)
	case nameLower == "name" && isPersonEntity(entity):
		value = pick(r, firstNames) + " " + pick(r, lastNames)
	case nameLower == "name" || strings.Contains(nameLower, "company") || strings.Contains(nameLower, "accountname"):
		value = pick(r, companies) + " " + pick(r, suffixes)
	case strings.Contains(nameLower, "title"):
		value = pick(r, titles)
	case strings.Contains(nameLower, "industry"):
		value = pick(r, industries)
	case strings.Contains(nameLower, "description") || strings.Contains(nameLower, "comment") || f.Type == types.FieldTextArea:
		value = pick(r, sentences)
	case strings.Contains(nameLower, "website") || strings.Contains(nameLower, "url"):
		value = fmt.Sprintf("https://www.example.com/%d", r.Intn(1000))
	case strings.Contains(nameLower, "phone") || strings.Contains(nameLower, "fax"):
		value = generatePhone(r)
	case strings.Contains(nameLower, "street") || strings.Contains(nameLower, "address"):
		value = fmt.Sprintf("%d %s", r.Intn(9999)+1, pick(r, streets))
	case strings.Contains(nameLower, "city"):
		value = pick(r, cities)
	case strings.Contains(nameLower, "postal") || strings.Contains(nameLower, "zip"):
		value = fmt.Sprintf("%05d", r.Intn(100000))
	default:
		value = fmt.Sprintf("%s %s", strings.TrimSuffix(humanize(f), " "), pick(r, words))
	}

	if f.Unique || nameLower == "name" {
		return fitWithSuffix(value, "-"+strconv.Itoa(index+1), limit)
	}
	return truncate(value, limit)
}

// generateEmail builds an address unique per (session, entity, index) and
// trims the local part so the whole address fits limit.
func (g *DataGenerator) generateEmail(entity string, index, limit int) string {
	const domain = "@example.com"
	local := fmt.Sprintf("user%d.%s", index+1, strings.ToLower(sanitize(entity)))
	if g.session != "" {
		short := sanitize(g.session)
		if len(short) > 8 {
			short = short[:8]
		}
		local += "." + strings.ToLower(short)
	}
	room := limit - len(domain)
	if room < 1 {
		return truncate("u"+domain, limit)
	}
	if len(local) > room {
		local = local[:room]
		local = strings.TrimRight(local, ".")
	}
	return local + domain
}

func generatePhone(r *rand.Rand) string {
	return fmt.Sprintf("+1-%03d-%03d-%04d", 200+r.Intn(800), r.Intn(1000), r.Intn(10000))
}

func generateInt(r *rand.Rand, f *types.FieldDescriptor) int {
	digits := f.Precision - f.Scale
	if f.Type == types.FieldInt && f.Precision > 0 {
		digits = f.Precision
	}
	return r.Intn(upperBound(digits)) + 1
}

func generateDecimal(r *rand.Rand, f *types.FieldDescriptor) float64 {
	whole := r.Intn(upperBound(f.Precision - scaleOf(f)))
	return roundTo(float64(whole)+r.Float64(), scaleOf(f))
}

// upperBound keeps generated magnitudes within the declared digits and
// below a readable ceiling.
func upperBound(digits int) int {
	const ceiling = 1000000
	if digits <= 0 || digits >= 7 {
		return ceiling
	}
	return int(math.Pow10(digits)) - 1
}

func scaleOf(f *types.FieldDescriptor) int {
	if f.Scale > 0 {
		return f.Scale
	}
	if f.Type == types.FieldCurrency || f.Type == types.FieldPercent {
		return 2
	}
	return 0
}

func roundTo(v float64, scale int) float64 {
	p := math.Pow10(scale)
	return math.Round(v*p) / p
}

// isText reports whether values of f are free text bounded by MaxLength.
func isText(f *types.FieldDescriptor) bool {
	switch f.Type {
	case types.FieldString, types.FieldTextArea, types.FieldCombobox, types.FieldEncrypted,
		types.FieldEmail, types.FieldPhone, types.FieldURL:
		return true
	}
	return false
}

func maxLength(f *types.FieldDescriptor) int {
	if f.MaxLength <= 0 {
		return defaultMaxLength
	}
	return f.MaxLength
}

// truncate cuts s to at most limit runes.
func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// fitWithSuffix keeps suffix intact and shortens base so the result fits.
func fitWithSuffix(base, suffix string, limit int) string {
	if utf8.RuneCountInString(base)+utf8.RuneCountInString(suffix) <= limit {
		return base + suffix
	}
	room := limit - utf8.RuneCountInString(suffix)
	if room <= 0 {
		return truncate(suffix, limit)
	}
	return truncate(base, room) + suffix
}

func pick(r *rand.Rand, list []string) string {
	return list[r.Intn(len(list))]
}

func isPersonEntity(entity string) bool {
	switch strings.ToLower(entity) {
	case "contact", "lead", "user", "person", "individual":
		return true
	}
	return false
}

func humanize(f *types.FieldDescriptor) string {
	if f.Label != "" {
		return f.Label
	}
	name := strings.TrimSuffix(f.Name, "__c")
	return strings.ReplaceAll(name, "_", " ")
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
