package graph

// RootID is the id of the one parentless node every session starts with
const RootID = "root"

// RootKeyword is the canonical label of the root node
const RootKeyword = "root"

// Dialog is one user/assistant exchange filed under a topic node
type Dialog struct {
	UserMessage string `json:"user_message"`
	GPTMessage  string `json:"gpt_message"`
}

// Node represents one deduplicated topic in the graph. Ids encode lineage:
// the root is "root" and children are "<parentId>-<seq>".
type Node struct {
	ID       string   `json:"id"`
	Keyword  string   `json:"keyword"`
	Dialogs  []Dialog `json:"dialogs"`
	Children []string `json:"children"`
	ParentID string   `json:"parent_id,omitempty"`
	Relation string   `json:"relation,omitempty"`
}

// clone returns a deep copy so store state never leaks by reference
func (n *Node) clone() Node {
	c := *n
	c.Dialogs = append([]Dialog(nil), n.Dialogs...)
	c.Children = append([]string(nil), n.Children...)
	return c
}
