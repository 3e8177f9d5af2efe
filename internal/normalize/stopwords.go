package normalize

// DefaultStopwords is the fixed English stopword list used for phrase mining.
// Words of two letters or fewer are already dropped by length.
var DefaultStopwords = []string{
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can",
	"had", "her", "was", "one", "our", "out", "has", "have", "him", "his",
	"how", "its", "may", "new", "now", "old", "see", "two", "who", "did",
	"get", "got", "just", "like", "also", "been", "from", "into", "more",
	"much", "only", "over", "some", "such", "than", "that", "them", "then",
	"there", "these", "they", "this", "those", "very", "what", "when",
	"where", "which", "while", "will", "with", "would", "your", "yours",
	"about", "after", "again", "being", "could", "does", "doing", "each",
	"few", "here", "myself", "other", "ourselves", "same", "should",
	"their", "theirs", "themselves", "through", "under", "until", "were",
	"whom", "why", "yourself", "because", "before", "below", "between",
	"both", "down", "during", "further", "off", "once", "own", "too",
	"above", "against", "having", "herself", "himself", "itself", "she",
	"nor", "don", "didn", "doesn", "isn", "wasn", "aren", "won",
	"let", "really", "still", "even", "going", "thing", "things", "way",
	"make", "made", "want", "know", "think", "use", "using", "used",
	"https", "http", "www", "com", "amp",
}
