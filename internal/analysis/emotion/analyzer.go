package emotion

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Decision 给出启发式情绪识别结果。
type Decision struct {
	Emotion Label
	Score   int
}

// keywordBuckets are matched against accent-folded, lower-cased text.
var keywordBuckets = map[Label][]string{
	Sad: {
		"triste", "tristeza", "llorar", "llore", "llorando", "deprimid", "desanimad", "dolid",
		"me duele", "perdi", "extrano", "melancol", "decepcion",
	},
	Anxious: {
		"ansios", "ansiedad", "nervios", "preocupad", "preocupa", "miedo", "panico", "angustia",
		"inquiet", "no puedo dejar de pensar",
	},
	Angry: {
		"enojad", "enojo", "furios", "coraje", "odio", "rabia", "molest", "me choca", "harto", "harta",
	},
	Frustrated: {
		"frustrad", "frustracion", "nada me sale", "no me sale", "otra vez", "impotencia", "atorad",
	},
	Stressed: {
		"estres", "estresad", "presion", "agobiad", "saturad", "examen", "examenes", "trabajo pendiente",
		"no me da tiempo",
	},
	Tired: {
		"cansad", "cansancio", "agotad", "sin energia", "sueno", "no dormi", "desvelad", "exhaust",
	},
	Happy: {
		"feliz", "contento", "contenta", "alegre", "alegria", "emocionad", "genial", "increible",
		"me encanta", "lo logre", "que bien",
	},
	Relieved: {
		"aliviad", "alivio", "por fin", "menos mal", "tranquil", "ya paso", "ya termine",
	},
	Confused: {
		"confundid", "confusion", "no entiendo", "no se que hacer", "perdid", "no se si", "dudas",
	},
	Lonely: {
		"me siento solo", "me siento sola", "estoy solo", "estoy sola", "soledad", "nadie me", "aislad",
		"abandonad", "sin amigos",
	},
}

// bucketOrder fixes iteration so equal scores resolve deterministically.
var bucketOrder = []Label{Sad, Anxious, Angry, Frustrated, Stressed, Tired, Happy, Relieved, Confused, Lonely}

// Analyze 根据关键词推断用户消息的情绪，无法判断时返回 neutral。
func Analyze(text string) Decision {
	normalized := Fold(text)
	if normalized == "" {
		return Decision{Emotion: Neutral}
	}

	bestLabel := Neutral
	bestScore := 0
	for _, label := range bucketOrder {
		score := 0
		for _, word := range keywordBuckets[label] {
			if strings.Contains(normalized, word) {
				score += 3
			}
		}
		if score > bestScore {
			bestScore = score
			bestLabel = label
		}
	}

	if exclamations := strings.Count(text, "!"); exclamations > 0 && bestLabel == Happy {
		bestScore += exclamations
	}

	return Decision{Emotion: bestLabel, Score: bestScore}
}

// Fold lower-cases text and strips diacritics so "Estrés" matches "estres".
func Fold(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, trimmed)
	if err != nil {
		folded = trimmed
	}
	return strings.ToLower(folded)
}
