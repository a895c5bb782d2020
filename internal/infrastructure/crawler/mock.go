package crawler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"NewsIngest/internal/domain"
	"NewsIngest/internal/source"
)

// AdapterNameMock identifies the deterministic generator in run reports.
const AdapterNameMock = "模擬新聞生成器"

type mockTemplate struct {
	title    string
	content  string
	category string
	keywords string
}

var mockTemplates = []mockTemplate{
	{
		title:    "金管會發布2025年保險業數位轉型新指引",
		content:  "金融監督管理委員會發布2025年保險業數位轉型指引，要求保險公司加強數位化服務能力，提升客戶體驗。指引中特別強調人工智慧、大數據分析在保險業務中的應用，並對資訊安全、個資保護提出更嚴格要求。",
		category: "法規",
		keywords: "金管會,數位轉型,人工智慧,資訊安全",
	},
	{
		title:    "台灣壽險業上半年保費收入創新高",
		content:  "根據保險事業發展中心統計，台灣壽險業上半年保費收入達新台幣三千億元，較去年同期成長一成五。其中投資型保險商品表現亮眼，反映民眾對退休理財規劃需求增加。",
		category: "壽險",
		keywords: "壽險,保費收入,投資型保險,退休理財",
	},
	{
		title:    "健康險理賠金額年增兩成 醫療需求持續升溫",
		content:  "今年健康險理賠金額較去年同期增加兩成。保險公司表示，民眾健康意識提升，投保意願增強，但同時理賠案件也明顯增加，特別是住院醫療和重大疾病理賠。",
		category: "健康險",
		keywords: "健康險,理賠,住院醫療",
	},
	{
		title:    "產險業推出新型態氣候變遷保障商品",
		content:  "面對全球氣候變遷挑戰，國內主要產險公司聯合推出新型態氣候風險保障商品。商品涵蓋極端天氣、海平面上升、溫度變化等風險，為企業和個人提供更全面的保障。",
		category: "產險",
		keywords: "產險,氣候變遷,極端天氣,風險保障",
	},
	{
		title:    "保險科技新創完成B輪融資 擴大市場布局",
		content:  "台灣保險科技新創公司宣布完成新台幣五億元的B輪融資。該公司專注於利用人工智慧和區塊鏈技術，提供創新的保險服務解決方案，預計將擴大市場布局。",
		category: "保險科技",
		keywords: "保險科技,新創,人工智慧,區塊鏈,融資",
	},
}

var mockSources = []string{"工商時報", "經濟日報", "聯合新聞網", "自由時報"}

// Published ages cycle through the templates; a couple fall outside the
// default 7-day window so the freshness filter has something to do.
var mockAgesDays = []int{0, 2, 5, 9, 14}

// MockAdapter generates deterministic articles without any I/O. It serves
// as the designated last-resort source and as a test double.
type MockAdapter struct {
	count int
	now   func() time.Time
}

var _ source.Adapter = (*MockAdapter)(nil)

// NewMock builds a generator producing count articles per fetch.
func NewMock(count int) *MockAdapter {
	if count <= 0 {
		count = 5
	}
	return &MockAdapter{count: count, now: time.Now}
}

// Name identifies the adapter in reports and the registry.
func (m *MockAdapter) Name() string {
	return AdapterNameMock
}

// FetchBatch generates the configured number of articles. Output depends
// only on the count and the current time.
func (m *MockAdapter) FetchBatch(ctx context.Context) ([]domain.Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := m.now().UTC()
	articles := make([]domain.Article, 0, m.count)
	for i := 0; i < m.count; i++ {
		tpl := mockTemplates[i%len(mockTemplates)]

		title := tpl.title
		if i >= len(mockTemplates) {
			title = fmt.Sprintf("%s（第%d報）", title, i/len(mockTemplates)+1)
		}

		published := now.AddDate(0, 0, -mockAgesDays[i%len(mockAgesDays)])
		articles = append(articles, domain.Article{
			ID:          uuid.New(),
			Title:       title,
			Content:     tpl.content,
			Summary:     truncateRunes(tpl.content, 150),
			URL:         fmt.Sprintf("https://example.com/news/%d", i+1),
			Source:      mockSources[i%len(mockSources)],
			Category:    tpl.category,
			Keywords:    tpl.keywords,
			PublishedAt: &published,
			CrawledAt:   now,
		})
	}
	return articles, nil
}
