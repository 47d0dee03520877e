package keypoints

// freakRing is one ring of the sampling pattern: six receptor offsets on a circle and the blur shared by
// its receptors, both relative to a unit outer radius.
type freakRing struct {
	points [6][2]float64
	sigma  float64
}

const freakSigmaCenter = 0.1

// freakRings lists the rings from the innermost (0) to the outermost (5).
var freakRings = [6]freakRing{
	{
		points: [6][2]float64{
			{0.000000, 0.362783},
			{-0.314179, 0.181391},
			{-0.314179, -0.181391},
			{-0.000000, -0.362783},
			{0.314179, -0.181391},
			{0.314179, 0.181391},
		},
		sigma: 0.175,
	},
	{
		points: [6][2]float64{
			{-0.595502, 0.000000},
			{-0.297751, -0.515720},
			{0.297751, -0.515720},
			{0.595502, -0.000000},
			{0.297751, 0.515720},
			{-0.297751, 0.515720},
		},
		sigma: 0.25,
	},
	{
		points: [6][2]float64{
			{-0.000000, -0.741094},
			{0.641806, -0.370547},
			{0.641806, 0.370547},
			{0.000000, 0.741094},
			{-0.641806, 0.370547},
			{-0.641806, -0.370547},
		},
		sigma: 0.325,
	},
	{
		points: [6][2]float64{
			{0.847306, -0.000000},
			{0.423653, 0.733789},
			{-0.423653, 0.733789},
			{-0.847306, 0.000000},
			{-0.423653, -0.733789},
			{0.423653, -0.733789},
		},
		sigma: 0.4,
	},
	{
		points: [6][2]float64{
			{0.000000, 0.930969},
			{-0.806243, 0.465485},
			{-0.806243, -0.465485},
			{-0.000000, -0.930969},
			{0.806243, -0.465485},
			{0.806243, 0.465485},
		},
		sigma: 0.475,
	},
	{
		points: [6][2]float64{
			{-1.000000, 0.000000},
			{-0.500000, -0.866025},
			{0.500000, -0.866025},
			{1.000000, -0.000000},
			{0.500000, 0.866025},
			{-0.500000, 0.866025},
		},
		sigma: 0.55,
	},
}
