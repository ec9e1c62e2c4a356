package tokenizer

import "strings"

// snowballStopWords follows the snowball project lists
var snowballStopWords = map[string]string{
	"en": `i me my myself we our ours ourselves you your yours yourself yourselves he him his
		himself she her hers herself it its itself they them their theirs themselves what which
		who whom this that these those am is are was were be been being have has had having do
		does did doing would should could ought a an the and but if or because as until while of
		at by for with about against between into through during before after above below to
		from up down in out on off over under again further then once here there when where why
		how all any both each few more most other some such no nor not only own same so than too
		very`,
	"es": `de la que el en y a los del se las por un para con no una su al lo como más pero sus
		le ya o este sí porque esta entre cuando muy sin sobre también me hasta hay donde quien
		desde todo nos durante todos uno les ni contra otros ese eso ante ellos e esto mí antes
		algunos qué unos yo otro otras otra él tanto esa estos mucho quienes nada muchos cual
		poco ella estar estas algunas algo nosotros`,
	"fr": `au aux avec ce ces dans de des du elle en et eux il je la le leur lui ma mais me même
		mes moi mon ne nos notre nous on ou par pas pour qu que qui sa se ses son sur ta te tes
		toi ton tu un une vos votre vous c d j l à m n s t y été étée étées étés étant suis es
		est sommes êtes sont serai`,
	"de": `aber alle allem allen aller alles als also am an ander andere anderem anderen anderer
		anderes auch auf aus bei bin bis bist da damit dann der den des dem die das dass du
		durch ein eine einem einen einer eines er es für hat hatte ich ihr im in ist ja kein
		man mit nach nicht noch nun nur ob oder ohne sehr sie sind so über um und uns unter vom
		von vor war was weil wenn wie wir wird zu zum zur`,
	"it": `ad al allo ai agli all agl alla alle con col coi da dal dallo dai dagli dall dagl
		dalla dalle di del dello dei degli dell degl della delle in nel nello nei negli nell
		negl nella nelle su sul sullo sui sugli sull sugl sulla sulle per tra contro io tu lui
		lei noi voi loro mio mia miei mie tuo tua che chi cui non più quale quanto come e è`,
	"pt": `de a o que e do da em um para com não uma os no se na por mais as dos como mas ao ele
		das à seu sua ou quando muito nos já eu também só pelo pela até isso ela entre depois
		sem mesmo aos seus quem nas me esse eles você essa num nem suas meu às minha numa pelos`,
	"nl": `de en van ik te dat die in een hij het niet zijn is was op aan met als voor had er maar
		om hem dan zou of wat mijn men dit zo door over ze zich bij ook tot je mij uit der daar
		haar naar heb hoe heeft hebben deze u want nog zal me zij nu ge geen omdat iets worden`,
	"ru": `и в во не что он на я с со как а то все она так его но да ты к у же вы за бы по только
		ее мне было вот от меня еще нет о из ему теперь когда даже ну вдруг ли если уже или ни
		быть был него до вас нибудь опять уж вам ведь там потом себя ничего ей может они тут где
		есть надо ней для мы тебя их чем была сам чтоб без будто чего раз тоже себе под будет`,
	"sv": `och det att i en jag hon som han på den med var sig för så till är men ett om hade de
		av icke mig du henne då sin nu har inte hans honom skulle hennes där min man ej vid kunde
		något från ut när efter upp vi dem vara vad över än dig kan sina här ha mot alla under`,
	"no": `og i jeg det at en et den til er som på de med han av ikke ikkje der så var meg seg men
		ett har om vi min mitt ha hadde hun nå over da ved fra du ut sin dem oss opp man kan
		hans hvor eller hva skal selv sjøl her alle vil bli ble blei blitt kunne inn når være`,
	"hu": `a ahogy ahol aki akik akkor alatt által általában amely amelyek amelyekben amelyeket
		amelyet amelynek ami amit amolyan amíg amikor át abban ahhoz annak arra arról az azok
		azon azt azzal azért aztán azután azonban bár be belül benne cikk cikkek cikkeket csak
		de e eddig egész egy egyes egyetlen egyéb egyik egyre ekkor el elég ellen elő először
		előtt első én és ez ezek ezen ezt ezzel ezért fel felé hanem hiszen hogy hogyan igen
		ill is ison itt jól kell kellett keresztül ki kívül között közül le legalább legyen
		lehet lett lesz lenne majd meg még mellett mely melyek mert mi mikor milyen minden
		mindenki mint mintha mit mivel miért most nagy nagyon ne néha nekem neki nem nincs
		olyan ott össze ő ők őket pedig persze rá s saját sem semmi sok sokat sokkal szemben
		szerint szinte számára talán tehát teljes tovább továbbá több ugyanis új újabb újra
		után utána utolsó vagy vagyis valaki valami valamint való van vannak vele vissza volt
		voltak voltam voltunk`,
}

// isoStopWords follows the stopwords-iso style lists, which overlap with the
// snowball lists but add frequent function words and mail boilerplate
var isoStopWords = map[string]string{
	"en": `s t can will just don should now d ll m o re ve y ain aren couldn didn doesn hadn
		hasn haven isn ma mightn mustn needn shan shouldn wasn weren won wouldn also however
		yet upon whether either neither within without via per among amongst etc ie eg re
		fwd cc bcc dear hi hello regards thanks thank sincerely`,
	"es": `ser es son fue era han ha he sea está están estaba estoy tiene tienen tenía hacer
		hace así aquí allí ahora entonces siempre nunca cada mismo misma vez usted ustedes`,
	"fr": `alors aussi autre avant avoir bien car ceci cela celle celui cet cette comme comment
		donc encore est être fait faire ici ils là leurs mais moins peu peut plus puis quand
		sans selon seulement si sous tous tout toute toutes très trop vers voici voilà`,
	"de": `bei beim bereits dabei dafür daher dazu dein deine dich dir doch dort ebenso euch
		euer gegen gewesen habe haben hier hin hinter ihm ihn ihnen ihre immer jede jeder
		jedoch jetzt kann können mein meine mich mir muss sein seine sich soll sollte wieder`,
	"it": `anche ancora avere aveva certo ci cosa così dove dopo essere fare già ha hanno ho
		il la le lo ma molto ne nessuno ogni perché però poi qui quindi se sempre senza sono
		stato tutto tutti un una uno`,
	"pt": `aquele aquela aqui assim bem cada coisa depois deve dizer ela eles esta estava
		está estão foi for foram havia isso isto lá lhe mesmo muito onde outro pode porque
		quanto quase ser sobre são tem ter tinha todo toda todos tudo vai vez`,
	"nl": `al alles altijd andere ben bij dus echter elk enkele even gaan ga had hier hun
		iemand ja kan kon kunnen maar meer moet niets nooit ons onze ook toch veel wel werd
		wij wie wordt zelf zeer`,
	"ru": `это этот эта эти того той тот при про также так же чтобы очень можно нужно всё
		всех всем наш наша ваш ваша который которая которые свой своя свои`,
	"sv": `alltså andra annat bara blev bli blir denna detta dessa dock eller enligt ens ett
		fast fler flera får genom hade här hos hur igen inom just kommer mellan mer mycket
		också sedan sådan så som utan vår våra vilken vilka`,
	"no": `både bare begge dette disse eller enn etter fordi før hennes hennes hvis kom
		kun mange mer mest nei noe noen også slik som sånn uten vår våre`,
	"hu": `amelyik annyi bele csupán ebben egyébként éppen ezért fog fogja hol ilyen itt
		kb maga meg mellett mindig mostanában nekik nálunk ön önök pl sőt stb továbbá vagyok`,
}

// StopWords holds per-locale stop-word sets built once from both sources
type StopWords struct {
	sets map[string]map[string]struct{}
}

// NewStopWords unions the two sources per locale
func NewStopWords() *StopWords {
	sw := &StopWords{sets: make(map[string]map[string]struct{})}
	for _, source := range []map[string]string{snowballStopWords, isoStopWords} {
		for locale, words := range source {
			set, ok := sw.sets[locale]
			if !ok {
				set = make(map[string]struct{})
				sw.sets[locale] = set
			}
			for _, w := range strings.Fields(words) {
				set[w] = struct{}{}
			}
		}
	}
	return sw
}

// setFor returns the locale set, or the baseline set when the locale has none
func (sw *StopWords) setFor(locale string) map[string]struct{} {
	if set, ok := sw.sets[NormalizeLocale(locale)]; ok {
		return set
	}
	return sw.sets[BaselineLocale]
}

// Has reports whether word is a stop word for locale
func (sw *StopWords) Has(locale, word string) bool {
	_, ok := sw.setFor(locale)[word]
	return ok
}

// Remove filters stop words out of tokens, keeping order
func (sw *StopWords) Remove(locale string, tokens []string) []string {
	set := sw.setFor(locale)
	out := tokens[:0:0]
	for _, t := range tokens {
		if _, stop := set[t]; !stop {
			out = append(out, t)
		}
	}
	return out
}

// Locales lists the locales with a dedicated set
func (sw *StopWords) Locales() []string {
	locales := make([]string, 0, len(sw.sets))
	for l := range sw.sets {
		locales = append(locales, l)
	}
	return locales
}
