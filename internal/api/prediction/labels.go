package prediction

// ModelPath is the location of the classification model artifact, relative
// to the working directory.
const ModelPath = "model/model.onnx"

// TargetSize is the square input resolution the model was trained on.
const TargetSize = 224

// ClassLabels maps output positions to class names, in the order of the
// model's training metadata. Its length must equal the model output width.
var ClassLabels = []string{
	"ไม่พบโรค",
	"โรคไหม้",
	"โรคกาบใบเน่า",
	"โรคใบจุดสีน้ำตาล",
	"โรคถอดฝักดาบ",
	"โรคขอบใบแห้ง",
	"โรคใบขีดโปร่งแสง",
	"โรคข้าวใบหงิก",
	"โรคใบสีส้ม",
	"หนอนม้วนใบข้าว",
	"โรคหนอนกอ",
	"โรคเพลี้ยกระโดดสีน้ำตาล",
	"โรคแมลงบั่ว",
	"โรคแมลงด่าง",
}
