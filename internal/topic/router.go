package topic

// Route decides which category/model handles one chat message.
//
// Without a document the message's own classification wins. With a
// document loaded, a message that classifies General (no strong
// topical signal) inherits the document's specialist so the
// conversation stays anchored; a clearly off-document message (coding,
// science, casual) switches specialist for that turn.
//
// Pure function of its inputs; docTopic may be nil.
func Route(docTopic *Detected, msgCategory Category, models ModelTable) (Category, string) {
	if docTopic != nil && msgCategory == General {
		return docTopic.Category, docTopic.Model
	}
	return msgCategory, models.Model(msgCategory)
}
