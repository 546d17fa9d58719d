package catalog

// TagPattern maps a badge string found in page text to a genre.
type TagPattern struct {
	Pattern string
	Genre   string
}

// ParserConfig drives the page-text heuristics.
type ParserConfig struct {
	// SkipKeywords mark lines that can never be titles: navigation, footer
	// text, filter buttons and the field labels themselves.
	SkipKeywords []string
	// AuthorStopKeywords disqualify the line after a title as an author.
	AuthorStopKeywords []string
	TagPatterns        []TagPattern

	PriceLabel    string
	PlayersLabel  string
	DurationLabel string

	MinTitleLen  int
	MaxTitleLen  int
	MaxAuthorLen int
	// LookAhead is how many lines after a title belong to its card.
	LookAhead int
	// MinCardLines is how far into a card the scan must be before the
	// next title candidate ends it.
	MinCardLines int
}

// DefaultParserConfig returns the heuristics tuned for the public catalog page.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		SkipKeywords: []string{
			"読み込み", "location", "access", "アクセス", "営業時間", "予約する",
			"local_florist", "マダミスとは", "公演カタログ", "制作", "問い合わせ",
			"Q&A", "TITLES", "検索する", "初心者におすすめ", "✨ 新作", "📕", "🔍",
			"5人以下", "6人用", "7人用", "8人用", "9人以上", "もっと見る",
			"keyboard_arrow", "home", "クインズワルツ", "東京都", "株式会社",
			"お問い合せ", "会社概要", "プライバシー", "FAQ", "email", "@queens",
			"©", "Queen", "edit", "done", "search", "マーダーミステリー専門店",
			"円", "人", "時間", "料金", "参加人数", "所用",
		},
		AuthorStopKeywords: []string{
			"料金", "参加人数", "所用", "円", "人", "時間",
			"✨", "🎭", "🔍", "📕", "💀", "🌀", "🎩", "📅", "🔰",
		},
		TagPatterns: []TagPattern{
			{"✨ 新作", "新作"},
			{"🎭 RP重視", "RP重視"},
			{"🔍 ミステリー", "ミステリー重視"},
			{"📕 ストーリー", "ストーリー重視"},
			{"🔰 初心者", "初心者向け"},
			{"💀デスゲーム", "デスゲーム"},
			{"🌀情報量多め", "情報量多め"},
			{"🎩 経験者限定", "経験者向け"},
			{"📅 ロングセラー", "ロングセラー"},
			{"オススメ", "オススメ"},
		},
		PriceLabel:    "料金",
		PlayersLabel:  "参加人数",
		DurationLabel: "所用",
		MinTitleLen:   2,
		MaxTitleLen:   60,
		MaxAuthorLen:  30,
		LookAhead:     20,
		MinCardLines:  5,
	}
}

// CleanupConfig filters parsed records that are not scenarios.
type CleanupConfig struct {
	// InvalidPatterns are anchored regular expressions for prices, counts,
	// badge lines and other non-titles.
	InvalidPatterns []string
	// KnownAuthors are author names the parser picked up as titles.
	KnownAuthors []string
	MinTitleLen  int
}

// DefaultCleanupConfig returns the filter used by the clean-catalog command.
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		InvalidPatterns: []string{
			`^[\d,.~〜\-\s]+$`,
			`^平日[\d,]+`,
			`^[\d,]+（`,
			`^🗓`,
			`^🌀`,
			`^🎭`,
			`^📕`,
			`^📖`,
			`^🔍`,
			`^💀`,
			`^📅`,
			`^🎩`,
			`^🇯🇵`,
			`^💥`,
			`^オススメ$`,
			`^NEW$`,
			`^\d+~\d+$`,
			`^\d+人$`,
			`^\d+〜\d+$`,
		},
		KnownAuthors: []string{
			"ドニパン", "りにょり", "とんとん", "七夕ドグラ", "WorLd Holic", "ほがらか",
			"ぶるーそにあ", "イキザマエンジン", "そがべ", "うろん堂", "東大マーダーミステリーサークル",
			"幸田幸", "坊", "タンブルウィード レッドラム", "すやてら", "稲垣杏橘", "秋山直太朗",
			"MATH-GAME", "綾部ヒサト", "える", "夏目美緒", "リン", "KOH", "apri la porta",
			"週末倶楽部", "しゃみずい", "マダミステリカ", "久畑ばく", "UniteLink",
			"ミステリーテリング", "イバラユーギ", "りにょり＆じる", "さくべえ",
			"ドキサバ♡委員会", "まだら牛", "min", "2U project", "isayu & Bubble",
			"コノハナストーリー", "じくまる", "EGG Mystery Club", "のりっち",
			"あそびばくろうさぎ", "マダミスHOUSE", "Light and Geek", "いとはき",
			"OfficeKUMOKANA", "みこ", "明日森マリー", "コズミックミステリー", "The Riverie",
			"いの", "グーニーカフェ", "前原白夜", "栗田哲也", "前原白夜 & 藤野将壱",
			"へむへむ", "青鬼才", "檜木田正史", "じゅもく", "ましー", "にっし＠ー",
			"桜眠都", "小鳥谷びび", "Scape Goat", "ココフォリア", "滝崎はじめ", "ねこまみれ",
			"ジョイマダ", "NAGAKUTSU",
		},
		MinTitleLen: 2,
	}
}

// tagToGenre maps cleaned badge text to the genre stored in the database.
// Tags missing from the table are stored as cleaned.
var tagToGenre = map[string]string{
	"新作":      "新作",
	"ロングセラー":  "ロングセラー",
	"RP重視":    "RP重視",
	"ミステリー":   "ミステリー重視",
	"ミステリー重視": "ミステリー重視",
	"ストーリー":   "ストーリー重視",
	"情報量多め":   "情報量多め",
	"デスゲーム":   "デスゲーム",
	"オススメ":    "オススメ",
	"初心者":     "初心者向け",
	"経験者限定":   "経験者向け",
	"経験者向け":   "経験者向け",
}

// tagDecorations are trimmed from both ends of a tag before mapping.
const tagDecorations = "✨🌀🎭💀📅💥🇯🇵📖🎩🗓️🔰🔍"
