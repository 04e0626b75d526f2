package graph

// CardioTerms is the fixed vocabulary of cardiology surface forms, keyed by
// entity type. Matching is case-insensitive literal phrase match; no
// stemming, no fuzzy dedup.
var CardioTerms = map[EntityType][]string{
	EntityAnatomy: {
		"heart", "atrium", "ventricle", "aorta", "valve", "mitral valve",
		"aortic valve", "pulmonary valve", "tricuspid valve",
		"coronary artery", "myocardium", "endocardium", "epicardium",
		"pericardium", "septum", "interventricular septum", "interatrial septum",
		"sinus node", "av node", "purkinje fibers", "bundle of his",
		"papillary muscle", "chordae tendineae", "vena cava",
	},
	EntityCondition: {
		"myocardial infarction", "heart attack", "coronary artery disease",
		"angina", "heart failure", "cardiomyopathy", "atrial fibrillation",
		"ventricular fibrillation", "tachycardia", "bradycardia", "arrhythmia",
		"hypertension", "hypotension", "pericarditis", "endocarditis",
		"myocarditis", "atherosclerosis", "aneurysm", "valvular heart disease",
		"mitral stenosis", "mitral regurgitation", "aortic stenosis",
		"aortic regurgitation", "congenital heart defect",
	},
	EntityDiagnostic: {
		"echocardiogram", "echocardiography", "electrocardiogram", "ECG", "EKG",
		"cardiac catheterization", "coronary angiogram", "stress test",
		"holter monitor", "cardiac MRI", "cardiac CT", "blood test",
		"troponin test", "BNP test", "cardiac enzyme",
	},
	EntityProcedure: {
		"bypass surgery", "CABG", "coronary bypass", "angioplasty",
		"stent placement", "heart transplant", "valve replacement",
		"valve repair", "ablation", "pacemaker implantation", "cardioversion",
		"ICD implantation",
	},
	EntityTreatment: {
		"beta blocker", "ace inhibitor", "angiotensin receptor blocker", "ARB",
		"calcium channel blocker", "diuretic", "anticoagulant", "aspirin",
		"statin", "nitrate", "vasodilator", "inotrope", "antiarrhythmic",
		"thrombolytic", "cardiac glycoside", "digoxin",
	},
	EntityFinding: {
		"chest pain", "dyspnea", "shortness of breath", "palpitations",
		"syncope", "edema", "cyanosis", "murmur", "S3 gallop", "S4 gallop",
		"crackles", "elevated jugular venous pressure", "JVP", "tachypnea",
		"cardiomegaly", "peripheral edema", "clubbing", "fatigue", "cough",
		"orthopnea", "paroxysmal nocturnal dyspnea", "PND", "diaphoresis",
		"pulmonary edema",
	},
	EntityMechanism: {
		"plaque formation", "atherosclerotic plaque", "thrombosis", "embolism",
		"ischemia", "reperfusion injury", "remodeling", "fibrosis",
		"inflammation", "oxidative stress", "endothelial dysfunction",
		"platelet aggregation", "vasoconstriction", "vasodilation",
		"cardiac remodeling", "hypertrophy", "diastolic dysfunction",
		"systolic dysfunction", "conduction abnormality",
	},
}
