package analyzer

import "strings"

// Localized labels for the fixed item-type vocabulary.
var typeMap = map[string]string{
	"WeaponSkin":              "무기 스킨",
	"WeaponAttachmentSkinSet": "부속품 스킨",
	"DroneSkin":               "드론 스킨",
	"CharacterHeadgear":       "머리보호구",
	"CharacterUniform":        "전투복",
	"OperatorCardPortrait":    "대원 초상화",
	"OperatorCardBackground":  "카드 뒷면",
	"Charm":                   "부적",
	"GadgetSkin":              "도구 스킨",
}

var rarityMap = map[string]string{
	"common":    "일반",
	"uncommon":  "고급",
	"rare":      "희귀",
	"epic":      "영웅",
	"superrare": "에픽",
	"legendary": "전설",
}

var subTagTranslations = map[string]string{
	"Animated": "동적",
	"3DSkin":   "3D 스킨",
	"Texture":  "텍스처",
	"Color":    "색상",
	"Pattern":  "패턴",
}

var weaponNames = []string{
	".44 Mag Semi-Auto", "5.7 USG", "6P41", "9mm C1", "9x19VSN", "416-C CARBINE",
	"417", "552 COMMANDO", "556XI", "1911 TACOPS", "ACS12", "AK-12", "AK-74M",
	"ALDA 556", "AR-1550", "AR33", "ARX200", "AUG A2", "AUG A3", "Bailiff 410",
	"BEARING 9", "BOSG122", "C7E", "C8-SFW", "C75 Auto", "CAMRS", "COMMANDO 9",
	"CSRX 300", "D-50", "DP27", "F2", "F90", "FMG-9", "FO-12", "G8A1", "G36C",
	"GONNE-6", "GSH-18", "ITA12L", "ITA12S", "K1A", "KERATOS .357", "L85A2",
	"LFP586", "LMG-E", "M4", "M12", "M45 MEUSOC", "M249", "M249 SAW", "M590A1",
	"M762", "M870", "M1014", "Mk 14 EBR", "MK1 9mm", "MK17 CQB", "MP5", "MP5K",
	"MP5SD", "MP7", "MPX", "Mx4 Storm", "OTs-03", "P-10C", "P9", "P10 RONI",
	"P12", "P90", "P226 MK 25", "P229", "PARA-308", "PDW9", "PMM", "POF-9",
	"PRB92", "Q-929", "R4-C", "RG15", "SASG-12", "SC3000K", "SCORPION EVO 3 A1",
	"SDP 9mm", "SG-CQB", "SIX12", "SIX12 SD", "SMG-11", "SMG-12", "SPAS-12",
	"SPAS-15", "SPEAR .308", "SPSMG9", "SR-25", "SUPER 90", "SUPER SHORTY",
	"SUPERNOVA", "T-5 SMG", "T-95 LSW", "TCSG12", "TYPE-89", "UMP45", "USP40",
	"UZK50GI", "V308", "VECTOR .45 ACP", "FlashShield", "TankShield",
}

var subTagCandidates = map[string]struct{}{
	"Animated": {},
	"3DSkin":   {},
	"Texture":  {},
	"Color":    {},
	"Pattern":  {},
}

var weaponSet = buildWeaponSet()

func buildWeaponSet() map[string]struct{} {
	set := make(map[string]struct{}, len(weaponNames))
	for _, name := range weaponNames {
		set[normalizeTag(name)] = struct{}{}
	}
	return set
}

// normalizeTag makes tag strings comparable against the weapon lookup set:
// uppercased, spaces to underscores, periods removed.
func normalizeTag(tag string) string {
	t := strings.ToUpper(tag)
	t = strings.ReplaceAll(t, " ", "_")
	t = strings.ReplaceAll(t, ".", "")
	return t
}
