package vo

// Transcript 转写产物，时间戳统一为秒。
// 转写成功后整体写入，重试时整体替换，不做字段级修补。
type Transcript struct {
	Text       string          `json:"text"`
	Language   string          `json:"language"`
	Confidence float64         `json:"confidence"`
	Words      []Word          `json:"words,omitempty"`
	Utterances []Utterance     `json:"utterances,omitempty"`
	Chapters   []Chapter       `json:"chapters,omitempty"`
	Entities   []Entity        `json:"entities,omitempty"`
	Sentiments []SentimentSpan `json:"sentiments,omitempty"`
	Highlights []Highlight     `json:"highlights,omitempty"`
}

// Word 单词级时间戳
type Word struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    string  `json:"speaker,omitempty"`
}

// Utterance 说话人轮次
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Chapter 自动章节
type Chapter struct {
	Gist     string  `json:"gist"`
	Headline string  `json:"headline"`
	Summary  string  `json:"summary"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}

// Entity 实体识别结果
type Entity struct {
	Type  string  `json:"entity_type"`
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// SentimentSpan 情感片段
type SentimentSpan struct {
	Text       string  `json:"text"`
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

// Highlight 关键片段
type Highlight struct {
	Text  string  `json:"text"`
	Rank  float64 `json:"rank"`
	Count int     `json:"count"`
}

// IsEmpty 判断转写结果是否为空
func (t *Transcript) IsEmpty() bool {
	return t == nil || t.Text == ""
}
