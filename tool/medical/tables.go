package medical

// Static reference tables backing the offline tools. They are intentionally
// small: the authoritative knowledge lives in the vector store, these cover
// the common lookups the agent needs without a retrieval round-trip.
// Lookups are pure; every tool built on them is deterministic and idempotent.

// symptomConditions maps a symptom keyword to plausible conditions.
var symptomConditions = map[string][]string{
	"发热": {"感冒", "流感", "感染"},
	"咳嗽": {"感冒", "支气管炎", "肺炎"},
	"头痛": {"偏头痛", "紧张性头痛", "高血压"},
	"胸痛": {"心绞痛", "肌肉拉伤", "焦虑"},
	"腹痛": {"胃炎", "肠胃炎", "阑尾炎"},
}

// DrugInfo describes one entry of the drug reference table.
type DrugInfo struct {
	Effect      string
	Dosage      string
	SideEffects string
	Precautions string
}

var drugTable = map[string]DrugInfo{
	"阿司匹林": {
		Effect:      "解热镇痛、抗血小板聚集",
		Dosage:      "口服，每次75-100mg，每日1次",
		SideEffects: "胃肠道不适、出血风险增加",
		Precautions: "餐后服用，注意出血风险",
	},
	"布洛芬": {
		Effect:      "解热镇痛抗炎",
		Dosage:      "口服，每次200-400mg，每日2-3次",
		SideEffects: "胃肠道不适、头晕",
		Precautions: "餐后服用，避免长期使用",
	},
	"对乙酰氨基酚": {
		Effect:      "解热镇痛",
		Dosage:      "口服，每次500mg，每4-6小时一次",
		SideEffects: "过量可导致肝损伤",
		Precautions: "注意日用量不超过4g",
	},
}

// lookupDrug returns the table entry for an exact drug name match.
func lookupDrug(name string) (DrugInfo, bool) {
	info, ok := drugTable[name]
	return info, ok
}

// adviceEntry holds lifestyle advice for one condition.
type adviceEntry struct {
	Diet     string
	Exercise string
	Living   string
}

var adviceTable = map[string]adviceEntry{
	"高血压": {
		Diet:     "低盐饮食，多吃蔬菜水果",
		Exercise: "适量有氧运动，如散步、游泳",
		Living:   "规律作息，控制体重，戒烟限酒",
	},
	"糖尿病": {
		Diet:     "控制碳水化合物摄入，定时定量进餐",
		Exercise: "餐后30分钟适量运动",
		Living:   "监测血糖，按时服药，足部护理",
	},
	"冠心病": {
		Diet:     "低脂低胆固醇饮食",
		Exercise: "循序渐进的有氧运动",
		Living:   "控制情绪，避免过度劳累",
	},
}

// Keyword sets for the three-tier urgency classification. A match against
// emergencyKeywords always escalates to the top tier regardless of the
// reported severity; severity can only raise urgency, never lower it.
var emergencyKeywords = []string{
	"胸痛", "呼吸困难", "意识模糊", "剧烈头痛",
	"高热", "大出血", "严重腹痛", "中毒症状",
}

var urgentKeywords = []string{
	"持续发热", "剧烈咳嗽", "严重呕吐",
	"关节疼痛", "皮疹", "失眠",
}

// departmentMap maps symptom/condition keywords to hospital departments.
var departmentMap = map[string]string{
	"心":  "心内科",
	"胸":  "心内科",
	"呼吸": "呼吸科",
	"咳嗽": "呼吸科",
	"腹":  "消化科",
	"胃":  "消化科",
	"头":  "神经内科",
	"关节": "骨科",
	"皮":  "皮肤科",
	"眼":  "眼科",
	"耳":  "耳鼻喉科",
}

const defaultDepartment = "内科（建议先到内科初诊）"
