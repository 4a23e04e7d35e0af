// Package rules classifies chat messages against the server's numbered rule
// set. Classification is a pure function over an ordered rule list: rules are
// evaluated in ascending number order and the first matching pattern wins.
package rules

import "regexp"

// SpamRuleNumber identifies the spam rule, whose matches are additionally
// tracked as spam events by the rule monitor.
const SpamRuleNumber = 8

// Pattern matches normalized (lower-cased) message text. *regexp.Regexp
// satisfies it directly; non-regex heuristics implement it programmatically
// so the whole rule set stays free of backtracking blowup on adversarial
// input.
type Pattern interface {
	MatchString(s string) bool
	String() string
}

// Rule is one numbered server rule with its text patterns and the reminder
// message shown on violation. Patterns are evaluated in declaration order.
type Rule struct {
	Number   int
	Message  string
	Patterns []Pattern
}

func re(expr string) Pattern {
	return regexp.MustCompile(expr)
}

// DefaultRules returns the server's rule set, ordered by rule number.
func DefaultRules() []Rule {
	return []Rule{
		{
			Number:  1,
			Message: "Discord TOS violations are against **Rule #1**.",
			Patterns: []Pattern{
				re(`\b(discord\.gg|discord\.com/invite|discord\.app/invite)\b`),
				re(`\b(steamcommunity\.com|steam\.com)\b`),
				re(`\b(bit\.ly|tinyurl|short\.link)\b`),
				re(`\b(phishing|scam|hack|exploit)\b`),
				re(`\b(raid|raiding|raider)\b`),
			},
		},
		{
			Number:  2,
			Message: "Bot abuse is against **Rule #2**.",
			Patterns: []Pattern{
				re(`\b(bot abuse|bot spam|bot farming)\b`),
				re(`\b(auto|automation|script|macro)\b.*\b(bot|discord)\b`),
				re(`\b(alt account|alt acc|multiple accounts)\b.*\b(bot|farming)\b`),
			},
		},
		{
			Number:  3,
			Message: "Robbing and heisting are against **Rule #3**.",
			Patterns: []Pattern{
				re(`\b(rob|robbing|heist|heisting|steal|stealing)\b`),
				re(`\b(take.*money|steal.*money|rob.*money)\b`),
				re(`\b(mafia|mafiabot|robbery)\b`),
			},
		},
		{
			Number:  4,
			Message: "Racist language is against **Rule #4**.",
			Patterns: []Pattern{
				re(`\b(nigger|nigga|chink|gook|kike|spic|wetback|beaner)\b`),
				re(`\b(white trash|black trash|yellow trash)\b`),
				re(`\b(monkey|ape|gorilla)\b.*\b(black|african)\b`),
				re(`\b(terrorist|bomb|jihad)\b.*\b(muslim|arab|middle east)\b`),
			},
		},
		{
			Number:  5,
			Message: "Please keep topics in appropriate channels - **Rule #5**.",
			Patterns: []Pattern{
				re(`\b(general|off-topic|random)\b.*\b(help|support|question)\b`),
				re(`\b(help|support)\b.*\b(general|off-topic|random)\b`),
			},
		},
		{
			Number:  6,
			Message: "NSFW content is against **Rule #6**.",
			Patterns: []Pattern{
				re(`\b(porn|pornography|xxx|nsfw|nude|naked)\b`),
				re(`\b(sex|sexual|fuck|fucking|fucked)\b`),
				re(`\b(pussy|dick|cock|penis|vagina|boobs|tits)\b`),
				re(`\b(gore|blood|violence|kill|murder|death)\b`),
				re(`\b(rape|raping|molest|molesting)\b`),
			},
		},
		{
			Number:  7,
			Message: "Voice chat violations are against **Rule #7**.",
			Patterns: []Pattern{
				re(`\b(ear rape|ear raping|loud noise|screaming)\b`),
				re(`\b(music bot|play music|music spam)\b`),
				re(`\b(voice hopping|vc hopping|voice chat hopping)\b`),
				re(`\b(mic spam|microphone spam)\b`),
			},
		},
		{
			Number:  8,
			Message: "Spamming is against **Rule #8**.",
			Patterns: []Pattern{
				// Short sequence repeated five or more times.
				&repeatedSequence{maxUnit: 5, minRepeats: 5, display: `(.{1,5})\1{4,}`},
				// Same character repeated more than ten times.
				&repeatedSequence{maxUnit: 1, minRepeats: 11, display: `(.)\1{10,}`},
				re(`\b(spam|spamming|spammer)\b`),
				re(`.{50,}`),
				re(`[!@#$%^&*()_+]{10,}`),
			},
		},
		{
			Number:  9,
			Message: "Using alternate accounts is against **Rule #9**.",
			Patterns: []Pattern{
				re(`\b(alt|alt account|alternate account|second account)\b`),
				re(`\b(main|main account|primary account)\b.*\b(alt|alt account)\b`),
				re(`\b(ban evasion|evading ban|circumvent ban)\b`),
			},
		},
		{
			Number:  10,
			Message: "Begging is against **Rule #10**.",
			Patterns: []Pattern{
				re(`\b(beg|begging|please give|can i have|need money)\b`),
				re(`\b(nitro|discord nitro|premium|vip)\b.*\b(please|give|want)\b`),
				re(`\b(poor|broke|no money|need help)\b.*\b(money|coins|cash)\b`),
				re(`\b(donate|donation|charity|help me)\b.*\b(money|coins|cash)\b`),
			},
		},
		{
			Number:  11,
			Message: "Advertisements are against **Rule #11**.",
			Patterns: []Pattern{
				re(`\b(join my server|my server|discord server)\b`),
				re(`\b(advertise|advertisement|promote|promotion)\b`),
				re(`\b(youtube|youtube\.com|youtu\.be)\b`),
				re(`\b(twitch|twitch\.tv)\b`),
				re(`\b(instagram|twitter|facebook|tiktok)\b`),
				re(`\b(website|site|link|check out)\b.*\b(my|our|this)\b`),
			},
		},
		{
			Number:  12,
			Message: "This behavior violates **Rule #12** - Common Sense.",
			Patterns: []Pattern{
				re(`\b(exploit|loophole|workaround|bypass)\b`),
				re(`\b(rule break|break rules|ignore rules)\b`),
				re(`\b(mod abuse|admin abuse|staff abuse)\b`),
				re(`\b(harass|harassment|bully|bullying)\b`),
			},
		},
	}
}

// repeatedSequence matches text containing any unit of up to maxUnit runes
// repeated at least minRepeats times consecutively. Equivalent to the
// backreference patterns (.{1,n})\1{m,}, which Go's RE2 engine cannot
// express and a backtracking engine cannot evaluate safely.
type repeatedSequence struct {
	maxUnit    int
	minRepeats int
	display    string
}

func (p *repeatedSequence) MatchString(s string) bool {
	runes := []rune(s)

	for unit := 1; unit <= p.maxUnit; unit++ {
		need := unit * p.minRepeats
		if need > len(runes) {
			break
		}

		for start := 0; start+need <= len(runes); start++ {
			repeats := 1

			for off := start + unit; off+unit <= len(runes); off += unit {
				if !runesEqual(runes[start:start+unit], runes[off:off+unit]) {
					break
				}

				repeats++
				if repeats >= p.minRepeats {
					return true
				}
			}
		}
	}

	return false
}

func (p *repeatedSequence) String() string {
	return p.display
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
