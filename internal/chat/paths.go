package chat

import (
	"fmt"
	"path/filepath"
	"strings"
)

// On-disk layout under the storage root:
//
//	<root>/
//	  _Agent_<agentId>_<agentId>/
//	    topics/
//	      topic_<chatId>/
//	        history.json
//
// The agent directory embeds the id twice so the name is self-describing and
// never collides with non-agent directories. Callers are responsible for
// identifier hygiene; ids must not contain path separators.
const (
	agentDirPrefix = "_Agent_"
	topicDirPrefix = "topic_"
	historyName    = "history.json"
)

// AgentDir returns the directory holding everything persisted for one agent.
func AgentDir(root, agentID string) string {
	return filepath.Join(root, fmt.Sprintf("%s%s_%s", agentDirPrefix, agentID, agentID))
}

// TopicsDir returns the directory holding an agent's topic directories.
func TopicsDir(root, agentID string) string {
	return filepath.Join(AgentDir(root, agentID), "topics")
}

// TopicDir returns the directory owning one session's storage.
func TopicDir(root, agentID, chatID string) string {
	return filepath.Join(TopicsDir(root, agentID), TopicDirName(chatID))
}

// HistoryFile returns the path of a session's serialized history.
func HistoryFile(root, agentID, chatID string) string {
	return filepath.Join(TopicDir(root, agentID, chatID), historyName)
}

// TopicDirName returns the directory name for a chat id.
func TopicDirName(chatID string) string {
	return topicDirPrefix + chatID
}

// IsAgentDirName reports whether name follows the agent directory pattern.
func IsAgentDirName(name string) bool {
	return strings.HasPrefix(name, agentDirPrefix)
}

// IsTopicDirName reports whether name is the topic directory of chatID.
func IsTopicDirName(name, chatID string) bool {
	return name == TopicDirName(chatID)
}
