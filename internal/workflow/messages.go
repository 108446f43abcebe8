package workflow

import (
	"fmt"

	"github.com/zxlitianshu/Kekari-agent/internal/language"
)

type message int

const (
	msgFault message = iota
	msgDone
	msgGreeting
	msgNoResults
	msgCandidatesHeader
	msgCandidateLine
	msgCandidatesMore
	msgCandidatesFooter
	msgClarifyNone
	msgClarifyMany
	msgNoImage
	msgConfirmPrompt
	msgConfirmAgain
	msgCommitted
	msgDiscarded
	msgDiscardedKept
	msgNothingReady
	msgPublishWhich
	msgPublishedHeader
	msgPublishedLine
	msgPublishFailedHeader
	msgPublishFailedLine
	msgReasonNotReady
	msgReasonUnavailable
	msgReasonTimeout
	msgReasonBlocked
	msgListingEmpty
	msgListingHeader
	msgListingLine
	msgListingPublished
	msgListingRemoved
	msgListingRemoveNone
	msgListingRemoveWhich
	msgTimeoutPrefix
	msgDegradedRoute
	msgDegradedSearch
	msgDegradedModify
	msgDegradedMaintain
	msgDegradedPublish
	msgDegradedListing
)

var catalogue = map[string]map[message]string{
	language.English: {
		msgFault:               "Sorry, something went wrong on my side while handling that. Please try again.",
		msgDone:                "Done.",
		msgGreeting:            "I can help you find products, edit their images, and publish them. What are you looking for?",
		msgNoResults:           "I couldn't find any products matching that. Try different keywords or fewer filters.",
		msgCandidatesHeader:    "Here is what I found:",
		msgCandidateLine:       "%d. %s (SKU %s)",
		msgCandidatesMore:      "...and %d more.",
		msgCandidatesFooter:    "Tell me which one you'd like to work on, for example \"change the background of the first one to white\".",
		msgClarifyNone:         "Which product do you mean? Search for it first or tell me its SKU.",
		msgClarifyMany:         "That matches several products: %s. Which one should I modify?",
		msgNoImage:             "%s has no image I can modify.",
		msgConfirmPrompt:       "Here is %s with \"%s\" applied:\n%s\n\nShould I keep this version? Reply yes or no. You can also say \"yes, and publish it\".",
		msgConfirmAgain:        "I didn't catch that. Should I keep the new image for %s? Please reply yes or no.",
		msgCommitted:           "Saved the new image for %s. It is ready to publish.",
		msgDiscarded:           "Discarded the modification for %s. The original images are unchanged.",
		msgDiscardedKept:       "Discarded the modification for %s and kept the original images for publishing.",
		msgNothingReady:        "Nothing is ready to publish yet. Search for products first.",
		msgPublishWhich:        "Which product should I publish? Ready: %s.",
		msgPublishedHeader:     "Published %d of %d:",
		msgPublishedLine:       "- %s (SKU %s): %s",
		msgPublishFailedHeader: "Not published:",
		msgPublishFailedLine:   "- SKU %s: %s",
		msgReasonNotReady:      "not on the ready list",
		msgReasonUnavailable:   "the store could not be reached",
		msgReasonTimeout:       "the store did not respond in time",
		msgReasonBlocked:       "blocked by publish policy (%s)",
		msgListingEmpty:        "No products are ready for publishing.",
		msgListingHeader:       "Ready for publishing (%d):",
		msgListingLine:         "- %s (SKU %s), %d image edit(s)",
		msgListingPublished:    ", published",
		msgListingRemoved:      "Removed from the ready list: %s.",
		msgListingRemoveNone:   "None of those products are on the ready list.",
		msgListingRemoveWhich:  "Which product should I remove from the ready list?",
		msgTimeoutPrefix:       "That took too long. ",
		msgDegradedRoute:       "I'm having trouble understanding requests right now. Please try again in a moment, or search for a product by name.",
		msgDegradedSearch:      "I couldn't reach product search just now. Please try again in a moment.",
		msgDegradedModify:      "The image modification didn't work. You could try again, use a simpler instruction, or pick a different product.",
		msgDegradedMaintain:    "I couldn't save your decision. Please answer again: should I keep the new image?",
		msgDegradedPublish:     "Publishing failed. Your ready products are saved, so you can ask me to publish again shortly.",
		msgDegradedListing:     "I couldn't load the ready list right now. Please try again shortly.",
	},
	language.Chinese: {
		msgFault:               "抱歉，处理您的请求时出现了问题，请再试一次。",
		msgDone:                "好的，已完成。",
		msgGreeting:            "我可以帮您查找商品、修改商品图片并上架发布。请问您想找什么？",
		msgNoResults:           "没有找到符合条件的商品，请换个关键词或减少筛选条件。",
		msgCandidatesHeader:    "为您找到以下商品：",
		msgCandidateLine:       "%d. %s（SKU %s）",
		msgCandidatesMore:      "……另外还有 %d 个。",
		msgCandidatesFooter:    "请告诉我您想处理哪一个，例如“把第一个的背景换成白色”。",
		msgClarifyNone:         "您指的是哪个商品？请先搜索，或告诉我它的 SKU。",
		msgClarifyMany:         "有多个商品符合：%s。请问要修改哪一个？",
		msgNoImage:             "%s 没有可以修改的图片。",
		msgConfirmPrompt:       "这是按“%[2]s”修改后的 %[1]s：\n%[3]s\n\n要保留这个版本吗？请回复“是”或“不要”，也可以说“好的，上架”。",
		msgConfirmAgain:        "没有理解您的意思。要保留 %s 的新图片吗？请回复“是”或“不要”。",
		msgCommitted:           "已保存 %s 的新图片，可以上架了。",
		msgDiscarded:           "已放弃 %s 的修改，原图保持不变。",
		msgDiscardedKept:       "已放弃 %s 的修改，将使用原图上架。",
		msgNothingReady:        "目前没有可上架的商品。请先搜索商品。",
		msgPublishWhich:        "要上架哪个商品？可上架：%s。",
		msgPublishedHeader:     "已上架 %d/%d：",
		msgPublishedLine:       "- %s（SKU %s）：%s",
		msgPublishFailedHeader: "未能上架：",
		msgPublishFailedLine:   "- SKU %s：%s",
		msgReasonNotReady:      "不在待上架列表中",
		msgReasonUnavailable:   "无法连接商店",
		msgReasonTimeout:       "商店响应超时",
		msgReasonBlocked:       "未通过上架规则（%s）",
		msgListingEmpty:        "目前没有待上架的商品。",
		msgListingHeader:       "待上架商品（%d）：",
		msgListingLine:         "- %s（SKU %s），%d 次图片修改",
		msgListingPublished:    "，已上架",
		msgListingRemoved:      "已从待上架列表移除：%s。",
		msgListingRemoveNone:   "这些商品都不在待上架列表中。",
		msgListingRemoveWhich:  "要从待上架列表中移除哪个商品？",
		msgTimeoutPrefix:       "请求超时。",
		msgDegradedRoute:       "暂时无法理解您的请求，请稍后再试，或直接按名称搜索商品。",
		msgDegradedSearch:      "暂时无法连接商品搜索，请稍后再试。",
		msgDegradedModify:      "图片修改没有成功。您可以重试、换一个更简单的修改要求，或选择其他商品。",
		msgDegradedMaintain:    "没能保存您的选择，请再回答一次：要保留新图片吗？",
		msgDegradedPublish:     "上架失败。待上架商品已保存，您可以稍后让我重新上架。",
		msgDegradedListing:     "暂时无法读取待上架列表，请稍后再试。",
	},
}

func say(lang string, m message, args ...any) string {
	t, ok := catalogue[lang][m]
	if !ok {
		t = catalogue[language.English][m]
	}
	if len(args) == 0 {
		return t
	}
	return fmt.Sprintf(t, args...)
}

var degradedMessages = map[string]message{
	StepSearch:   msgDegradedSearch,
	StepModify:   msgDegradedModify,
	StepMaintain: msgDegradedMaintain,
	StepPublish:  msgDegradedPublish,
	StepListing:  msgDegradedListing,
}

// degradedMessage says what failed and what to try, without internals.
func degradedMessage(lang string, f *Failure) string {
	m := msgDegradedRoute
	if f != nil {
		if dm, ok := degradedMessages[f.Step]; ok {
			m = dm
		}
	}
	msg := say(lang, m)
	if f != nil && f.Kind == KindTimeout {
		msg = say(lang, msgTimeoutPrefix) + msg
	}
	return msg
}
