package conditions

// Merge combines the weather and vegetation summaries into a single
// flat result. It is only called once both fetches have succeeded.
func Merge(w WeatherSummary, v VegetationSummary) Conditions {
	return Conditions{
		MeanTemperatureC: w.MeanTemperatureC,
		MeanHumidityPct:  w.MeanHumidityPct,
		MeanWindSpeedMS:  w.MeanWindSpeedMS,
		SumET0Mm:         w.SumET0Mm,
		NDVIMean:         v.NDVIMean,
	}
}
